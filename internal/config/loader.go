package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/steward/pkg/logging"
)

const (
	userConfigDir  = ".config/steward"
	configFileName = "config.yaml"

	// ClustersDir is the subdirectory holding cluster definitions.
	ClustersDir = "clusters"

	// CategoryClusters is the error category of cluster definition files.
	CategoryClusters = "clusters"
	// CategoryConfig is the error category of config.yaml.
	CategoryConfig = "config"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath onto the defaults and
// validates the result.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, parseError(configFilePath, CategoryConfig, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, invalidFile("config", configFilePath, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// ClustersPath returns the cluster definition directory below configPath.
func ClustersPath(configPath string) string {
	return filepath.Join(configPath, ClustersDir)
}

// IsDefinitionFile reports whether path names a cluster definition file.
func IsDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return (ext == ".yaml" || ext == ".yml") && !strings.HasPrefix(filepath.Base(path), ".")
}

// LoadClusterDefinition reads and validates one cluster definition file.
// knownTypes lists the entity types a member may have; nil skips that check.
func LoadClusterDefinition(path string, knownTypes []string) (ClusterDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClusterDefinition{}, newFileError(path, CategoryClusters, KindIO, err.Error())
	}

	var def ClusterDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return ClusterDefinition{}, parseError(path, CategoryClusters, err)
	}
	def.FilePath = path

	if err := def.Validate(knownTypes); err != nil {
		fe := newFileError(path, CategoryClusters, KindValidation, fmt.Sprintf("invalid cluster definition %q", def.Name))
		fe.Details = err.Error()
		fe.Suggestions = clusterSuggestions(err)
		return ClusterDefinition{}, fe
	}
	return def, nil
}

// LoadClusterDefinitions loads every definition below configPath/clusters.
// Valid definitions are returned sorted by name even when some files fail;
// the failures come back as a *FileErrors.
func LoadClusterDefinitions(configPath string, knownTypes []string) ([]ClusterDefinition, error) {
	dir := ClustersPath(configPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No cluster definitions at %s", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	errs := &FileErrors{}
	byName := make(map[string]ClusterDefinition)

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !IsDefinitionFile(path) {
			continue
		}

		def, err := LoadClusterDefinition(path, knownTypes)
		if err != nil {
			var fe FileError
			if !errors.As(err, &fe) {
				fe = newFileError(path, CategoryClusters, KindIO, err.Error())
			}
			errs.add(fe)
			continue
		}

		if prev, dup := byName[def.Name]; dup {
			fe := newFileError(path, CategoryClusters, KindValidation, fmt.Sprintf("cluster %q is already defined", def.Name))
			fe.Details = "first defined in " + prev.FilePath
			fe.Suggestions = []string{"Give every cluster definition a unique name"}
			errs.add(fe)
			continue
		}
		byName[def.Name] = def
	}

	defs := make([]ClusterDefinition, 0, len(byName))
	for _, def := range byName {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	logging.Info("ConfigLoader", "Loaded %d cluster definitions from %s", len(defs), dir)
	if errs.Len() > 0 {
		logging.Warn("ConfigLoader", "%s", errs.Summary())
	}
	return defs, errs.err()
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func parseError(path, category string, err error) FileError {
	fe := newFileError(path, category, KindParse, "malformed YAML")
	fe.Details = err.Error()
	fe.Suggestions = []string{"Check indentation and quoting around the reported line"}
	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		fe.Line, _ = strconv.Atoi(m[1])
	}
	return fe
}

func clusterSuggestions(err error) []string {
	var ves ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	var out []string
	for _, ve := range ves {
		switch ve.Field {
		case "memberType":
			out = append(out, "Set memberType to one of the registered entity types")
		case "name":
			out = append(out, "Use a short name without spaces, it prefixes every member name")
		}
	}
	return out
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownTypes = []string{"tomcat", "elasticsearch", "postgresql"}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_MergesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
defaults:
  pollInterval: 250ms
  launchAttempts: 5
location:
  ports: "40000-40100"
launcher:
  type: kubernetes
  namespace: steward
types:
  tomcat:
    readinessTimeout: 10m
    image: tomcat:10
  postgresql:
    image: postgres:15
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Defaults.PollInterval)
	assert.Equal(t, 5, cfg.Defaults.LaunchAttempts)
	assert.Equal(t, DefaultMaxPollBackoff, cfg.Defaults.MaxPollBackoff, "unset fields keep defaults")
	assert.Equal(t, "127.0.0.1", cfg.Location.Host)
	assert.Equal(t, "40000-40100", cfg.Location.Ports)
	assert.Equal(t, LauncherTypeKubernetes, cfg.Launcher.Type)
	assert.Equal(t, "steward", cfg.Launcher.Namespace)
	assert.Equal(t, DefaultMetricsAddress, cfg.Metrics.Address)

	assert.Equal(t, map[string]time.Duration{"tomcat": 10 * time.Minute}, cfg.ReadinessTimeouts())
	assert.Equal(t, map[string]string{"tomcat": "tomcat:10", "postgresql": "postgres:15"}, cfg.Images())
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "defaults:\n  pollInterval: [1\n")

	_, err := LoadConfig(dir)
	var fe FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindParse, fe.Kind)
	assert.Equal(t, CategoryConfig, fe.Category)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
defaults:
  launchAttempts: 0
location:
  ports: "abc"
launcher:
  type: lxc
`)

	_, err := LoadConfig(dir)
	var ves ValidationErrors
	require.True(t, errors.As(err, &ves))
	fields := make([]string, 0, len(ves))
	for _, ve := range ves {
		fields = append(fields, ve.Field)
	}
	assert.ElementsMatch(t, []string{"defaults.launchAttempts", "location.ports", "launcher.type"}, fields)
}

func TestLoadClusterDefinitions(t *testing.T) {
	dir := t.TempDir()
	clusters := ClustersPath(dir)
	writeFile(t, filepath.Join(clusters, "search.yaml"), `
name: search-1
memberType: elasticsearch
initialSize: 3
scaleTimeout: 10m
config:
  clusterName: search-1
`)
	writeFile(t, filepath.Join(clusters, "web.yml"), `
name: web
memberType: tomcat
initialSize: 2
minSuccess: 1
maxConcurrency: 1
nameTemplate: "{{ .cluster }}-node-{{ .index }}"
`)
	writeFile(t, filepath.Join(clusters, "README.md"), "not a definition")
	writeFile(t, filepath.Join(clusters, ".hidden.yaml"), "name: hidden")

	defs, err := LoadClusterDefinitions(dir, knownTypes)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	search := defs[0]
	assert.Equal(t, "search-1", search.Name)
	assert.Equal(t, "elasticsearch", search.MemberType)
	assert.Equal(t, 3, search.InitialSize)
	assert.Equal(t, 10*time.Minute, search.ScaleTimeout)
	assert.Equal(t, "search-1", search.Config["clusterName"])
	assert.Equal(t, filepath.Join(clusters, "search.yaml"), search.FilePath)

	web := defs[1]
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, 1, web.MinSuccess)
	assert.Equal(t, 1, web.MaxConcurrency)
	assert.Equal(t, "{{ .cluster }}-node-{{ .index }}", web.NameTemplate)
}

func TestLoadClusterDefinitions_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	clusters := ClustersPath(dir)
	writeFile(t, filepath.Join(clusters, "a.yaml"), "name: good\nmemberType: tomcat\ninitialSize: 1\n")
	writeFile(t, filepath.Join(clusters, "b.yaml"), "name: good\nmemberType: postgresql\n")
	writeFile(t, filepath.Join(clusters, "c.yaml"), "name: bad type\nmemberType: redis\n")
	writeFile(t, filepath.Join(clusters, "d.yaml"), "name: [broken\n")

	defs, err := LoadClusterDefinitions(dir, knownTypes)
	require.Len(t, defs, 1)
	assert.Equal(t, "good", defs[0].Name)

	var rejected *FileErrors
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, 3, rejected.Len())
	assert.Len(t, rejected.ByCategory(CategoryClusters), 3)
	assert.Empty(t, rejected.ByCategory(CategoryConfig))
	assert.Contains(t, rejected.Summary(), "clusters: 3 errors")
	assert.Contains(t, rejected.Report(), "Suggestions:")

	byFile := make(map[string]FileError)
	for _, fe := range rejected.Errors {
		byFile[fe.File()] = fe
	}
	assert.Contains(t, byFile["b.yaml"].Message, "already defined")
	assert.Equal(t, KindValidation, byFile["c.yaml"].Kind)
	assert.Contains(t, byFile["c.yaml"].Details, "must be one of")
	assert.Equal(t, KindParse, byFile["d.yaml"].Kind)
	assert.Positive(t, byFile["d.yaml"].Line)
	assert.Contains(t, byFile["d.yaml"].Report(), "line ")
}

func TestLoadClusterDefinitions_NoDirectory(t *testing.T) {
	defs, err := LoadClusterDefinitions(t.TempDir(), knownTypes)
	assert.NoError(t, err)
	assert.Empty(t, defs)
}

func TestIsDefinitionFile(t *testing.T) {
	assert.True(t, IsDefinitionFile("/x/clusters/a.yaml"))
	assert.True(t, IsDefinitionFile("b.YML"))
	assert.False(t, IsDefinitionFile("a.yaml.swp"))
	assert.False(t, IsDefinitionFile(".a.yaml"))
	assert.False(t, IsDefinitionFile("notes.txt"))
}

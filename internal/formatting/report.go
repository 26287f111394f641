package formatting

import (
	"fmt"
	"sort"
	"time"

	"github.com/giantswarm/steward/internal/cluster"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/sensor"
)

// MemberRow is one member line of a report.
type MemberRow struct {
	Name  string `json:"name" yaml:"name"`
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Index int64  `json:"index" yaml:"index"`
	State string `json:"state" yaml:"state"`
	Host  string `json:"host,omitempty" yaml:"host,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ScaleReport summarizes one scale operation.
type ScaleReport struct {
	Cluster   string      `json:"cluster" yaml:"cluster"`
	Operation string      `json:"operation" yaml:"operation"`
	Requested int         `json:"requested" yaml:"requested"`
	Required  int         `json:"required" yaml:"required"`
	Succeeded int         `json:"succeeded" yaml:"succeeded"`
	Members   []MemberRow `json:"members" yaml:"members"`
}

// OK reports whether enough members succeeded.
func (r ScaleReport) OK() bool {
	return r.Succeeded >= r.Required
}

// NewScaleReport converts a scale result. A nil result gives an empty report
// for cluster.
func NewScaleReport(clusterName string, result *cluster.ScaleResult) ScaleReport {
	if result == nil {
		return ScaleReport{Cluster: clusterName, Members: []MemberRow{}}
	}
	report := ScaleReport{
		Cluster:   result.Cluster,
		Operation: result.Operation,
		Requested: result.Requested,
		Required:  result.Required,
		Succeeded: len(result.Succeeded()),
		Members:   make([]MemberRow, 0, len(result.Members)),
	}
	for _, m := range result.Members {
		row := MemberRow{Name: m.Name, ID: m.ID, Index: m.Index, State: string(m.State)}
		if m.Err != nil {
			row.Error = m.Err.Error()
		}
		report.Members = append(report.Members, row)
	}
	return report
}

// ClusterView is the current state of a cluster and its members.
type ClusterView struct {
	Name       string      `json:"name" yaml:"name"`
	MemberType string      `json:"memberType" yaml:"memberType"`
	State      string      `json:"state" yaml:"state"`
	Size       int         `json:"size" yaml:"size"`
	Problems   []string    `json:"problems,omitempty" yaml:"problems,omitempty"`
	Members    []MemberRow `json:"members" yaml:"members"`
}

// NewClusterView snapshots c.
func NewClusterView(c *cluster.Cluster) ClusterView {
	e := c.Entity()
	view := ClusterView{
		Name:       c.Name(),
		MemberType: e.GetConfigString("memberType", ""),
		State:      string(e.GetState()),
		Size:       c.Size(),
		Problems:   e.Problems(),
		Members:    []MemberRow{},
	}
	for _, m := range c.Members() {
		view.Members = append(view.Members, memberRow(m))
	}
	return view
}

func memberRow(e *entity.Entity) MemberRow {
	row := MemberRow{Name: e.GetName(), ID: e.GetID(), State: string(e.GetState())}
	if loc := e.GetLocation(); loc != nil {
		row.Host = loc.Host
	}
	if err := e.GetLastError(); err != nil {
		row.Error = err.Error()
	}
	return row
}

// AttributeRow is one sensor value.
type AttributeRow struct {
	Name      string    `json:"name" yaml:"name"`
	Value     any       `json:"value" yaml:"value"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// NewAttributeRows converts published attributes, sorted by name.
func NewAttributeRows(attrs []sensor.Attribute) []AttributeRow {
	rows := make([]AttributeRow, 0, len(attrs))
	for _, a := range attrs {
		rows = append(rows, AttributeRow{Name: a.Name, Value: a.Value, UpdatedAt: a.UpdatedAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func valueString(v any) string {
	if v == nil {
		return "<unset>"
	}
	s := fmt.Sprintf("%v", v)
	if len(s) > 100 {
		s = s[:97] + "..."
	}
	return s
}

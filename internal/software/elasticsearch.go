package software

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/steward/internal/cluster"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/internal/sources"
)

const ElasticsearchType = "elasticsearch"

// Elasticsearch config keys.
const (
	ConfigClusterName = cluster.ConfigClusterName
	ConfigNodeName    = "nodeName"
)

// Elasticsearch sensors.
const (
	ElasticsearchClusterStatus = "elasticsearch.cluster.status"
	ElasticsearchClusterNodes  = "elasticsearch.cluster.nodes"
	ElasticsearchClusterName   = "elasticsearch.cluster.name"
)

// Elasticsearch runs one Elasticsearch node and reads cluster health over
// its HTTP API.
type Elasticsearch struct {
	base
}

// NewElasticsearch creates the elasticsearch driver.
func NewElasticsearch(opts Options) *Elasticsearch {
	return &Elasticsearch{base: base{
		typeName: ElasticsearchType,
		image:    "docker.elastic.co/elasticsearch/elasticsearch:8.13.4",
		ports: []portDef{
			{name: "http", defaultRange: "9200+", containerPort: 9200},
			{name: "transport", defaultRange: "9300+", containerPort: 9300},
		},
		readiness: 5 * time.Minute,
		opts:      opts,
	}}
}

// InstallSpec implements orchestrator.Driver.
func (es *Elasticsearch) InstallSpec(e *entity.Entity, loc *location.Location) (orchestrator.InstallSpec, error) {
	clusterName := e.GetConfigString(ConfigClusterName, e.GetName())
	env := map[string]string{
		"cluster.name":           clusterName,
		"node.name":              e.GetConfigString(ConfigNodeName, e.GetName()),
		"xpack.security.enabled": "false",
		"ES_JAVA_OPTS":           e.GetConfigString("javaOpts", "-Xms512m -Xmx512m"),
	}
	if _, clustered := e.GetConfig(ConfigClusterName); clustered {
		env["network.host"] = "0.0.0.0"
		env["network.publish_host"] = loc.Host
		env["transport.port"] = strconv.Itoa(es.containerPort("transport"))
		env["transport.publish_port"] = strconv.Itoa(loc.Port("transport"))
		seeds, masters := elasticsearchPeers(e, loc)
		env["discovery.seed_hosts"] = strings.Join(seeds, ",")
		env["cluster.initial_master_nodes"] = strings.Join(masters, ",")
	} else {
		env["discovery.type"] = "single-node"
	}

	labels := es.labels(e)
	labels["steward.cluster"] = clusterName

	return orchestrator.InstallSpec{
		Name:   e.GetName(),
		Image:  es.imageFor(e),
		Env:    env,
		Ports:  es.portMappings(loc),
		Labels: labels,
	}, nil
}

// Sensors implements orchestrator.Driver.
func (es *Elasticsearch) Sensors(e *entity.Entity, loc *location.Location, opts ...sensor.Option) ([]*sensor.Adapter, error) {
	api := sources.NewHTTPJSON(es.baseURL(loc, "http"), es.httpClient())

	with := func(tr sensor.Transform) []sensor.Option {
		return append(append([]sensor.Option{}, opts...), sensor.WithTransform(tr))
	}

	health := "/_cluster/health"
	adapters := []*sensor.Adapter{
		sensor.Poll(api, sensor.Descriptor{Target: "/"}, sensor.ServiceUp, with(sensor.ToBool)...),
		sensor.Poll(api, sensor.Descriptor{Target: health, Attribute: "status"},
			ElasticsearchClusterStatus, with(sensor.ToString)...),
		sensor.Poll(api, sensor.Descriptor{Target: health, Attribute: "number_of_nodes"},
			ElasticsearchClusterNodes, with(sensor.ToInt64)...),
		sensor.Poll(api, sensor.Descriptor{Target: health, Attribute: "cluster_name"},
			ElasticsearchClusterName, with(sensor.ToString)...),
	}
	return append(adapters, configAdapters(e)...), nil
}

// elasticsearchPeers returns the transport addresses of e and of every
// sibling Elasticsearch member that holds a location, and the node that
// bootstraps the cluster: the oldest member. A node without a parent seeds
// and bootstraps itself.
func elasticsearchPeers(e *entity.Entity, loc *location.Location) (seeds []string, masters []string) {
	self := transportAddress(loc)
	nodeName := e.GetConfigString(ConfigNodeName, e.GetName())

	parent := e.GetParent()
	if parent == nil {
		return []string{self}, []string{nodeName}
	}

	seen := map[string]bool{self: true}
	seeds = []string{self}
	for _, sibling := range parent.GetChildren() {
		if sibling.GetType() != ElasticsearchType {
			continue
		}
		if len(masters) == 0 {
			masters = []string{sibling.GetConfigString(ConfigNodeName, sibling.GetName())}
		}
		if sibling == e {
			continue
		}
		if sl := sibling.GetLocation(); sl != nil && sl.Port("transport") != 0 {
			addr := transportAddress(sl)
			if !seen[addr] {
				seen[addr] = true
				seeds = append(seeds, addr)
			}
		}
	}
	if len(masters) == 0 {
		masters = []string{nodeName}
	}
	sort.Strings(seeds[1:])
	return seeds, masters
}

func transportAddress(loc *location.Location) string {
	return net.JoinHostPort(loc.Host, strconv.Itoa(loc.Port("transport")))
}

// ElasticsearchMember is the cluster customizer for Elasticsearch clusters:
// every member joins the cluster under the cluster's own name, overriding a
// clusterName in the template, and is named after itself.
func ElasticsearchMember(spec entity.Spec, m cluster.Member) entity.Spec {
	return spec.With(ConfigClusterName, m.Cluster).With(ConfigNodeName, m.Name)
}

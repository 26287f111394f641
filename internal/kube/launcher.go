package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/pkg/logging"
)

const subsystem = "KubeLauncher"

// Location metadata keys.
const (
	MetaPodName      = "pod.name"
	MetaPodNamespace = "pod.namespace"
)

// PodPhase is the sensor carrying the phase of the entity's pod.
const PodPhase = "pod.phase"

const (
	containerName  = "main"
	managedByLabel = "app.kubernetes.io/managed-by"
	managedBy      = "steward"
)

// Launcher runs InstallSpecs as pods.
type Launcher struct {
	client     kubernetes.Interface
	namespace  string
	namePrefix string
}

// NewLauncher creates a Launcher creating pods in namespace.
func NewLauncher(client kubernetes.Interface, namespace, namePrefix string) *Launcher {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &Launcher{client: client, namespace: namespace, namePrefix: namePrefix}
}

// PodName turns a process name into a valid pod name.
func PodName(prefix, name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(prefix + name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := b.String()
	if len(s) > validation.DNS1123SubdomainMaxLength {
		s = s[:validation.DNS1123SubdomainMaxLength]
	}
	return strings.Trim(s, "-.")
}

func (l *Launcher) pod(name string, spec orchestrator.InstallSpec) *corev1.Pod {
	labels := map[string]string{managedByLabel: managedBy}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: spec.Env[k]})
	}

	ports := make([]corev1.ContainerPort, 0, len(spec.Ports))
	for _, p := range spec.Ports {
		ports = append(ports, corev1.ContainerPort{
			Name:          p.Name,
			ContainerPort: int32(p.ContainerPort),
			HostPort:      int32(p.HostPort),
			Protocol:      corev1.ProtocolTCP,
		})
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: l.namespace,
			Labels:    labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:  containerName,
				Image: spec.Image,
				Args:  spec.Command,
				Env:   env,
				Ports: ports,
			}},
		},
	}
}

// Launch implements orchestrator.Launcher.
func (l *Launcher) Launch(ctx context.Context, loc *location.Location, spec orchestrator.InstallSpec) error {
	if spec.Image == "" {
		return fmt.Errorf("install spec of %s has no image", spec.Name)
	}

	name := PodName(l.namePrefix, spec.Name)
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return fmt.Errorf("invalid pod name %q: %s", name, strings.Join(errs, "; "))
	}

	loc.SetMeta(MetaPodName, name)
	loc.SetMeta(MetaPodNamespace, l.namespace)

	_, err := l.client.CoreV1().Pods(l.namespace).Create(ctx, l.pod(name, spec), metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to create pod %s/%s: %w", l.namespace, name, err)
	}

	logging.Info(subsystem, "Created pod %s/%s for %s", l.namespace, name, spec.Name)
	return nil
}

// Terminate implements orchestrator.Launcher. A pod that is already gone
// counts as terminated.
func (l *Launcher) Terminate(ctx context.Context, loc *location.Location) error {
	name, ok := loc.Meta(MetaPodName)
	if !ok || name == "" {
		return nil
	}
	ns, _ := loc.Meta(MetaPodNamespace)
	if ns == "" {
		ns = l.namespace
	}

	err := l.client.CoreV1().Pods(ns).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete pod %s/%s: %w", ns, name, err)
	}

	logging.Info(subsystem, "Deleted pod %s/%s", ns, name)
	loc.SetMeta(MetaPodName, "")
	return nil
}

// Sensors implements orchestrator.SensorProvider.
func (l *Launcher) Sensors(_ *entity.Entity, loc *location.Location, opts ...sensor.Option) []*sensor.Adapter {
	name, ok := loc.Meta(MetaPodName)
	if !ok || name == "" {
		return nil
	}
	ns, _ := loc.Meta(MetaPodNamespace)

	w := NewPodWatcher(l.client)
	return []*sensor.Adapter{sensor.Subscribe(w, sensor.Descriptor{Target: ns + "/" + name}, PodPhase, opts...)}
}

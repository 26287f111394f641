package kube

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/giantswarm/steward/internal/sensor"
)

// PodWatcher emits the phase of the pod named by a descriptor target of the
// form "namespace/name". A deleted pod is reported as an error update so the
// last observed phase stays in place.
type PodWatcher struct {
	client kubernetes.Interface
}

// NewPodWatcher creates a PodWatcher.
func NewPodWatcher(client kubernetes.Interface) *PodWatcher {
	return &PodWatcher{client: client}
}

func splitTarget(target string) (string, string, error) {
	ns, name, ok := strings.Cut(target, "/")
	if !ok || ns == "" || name == "" {
		return "", "", fmt.Errorf("pod target %q must be namespace/name", target)
	}
	return ns, name, nil
}

// Subscribe implements sensor.Subscriber. The channel closes when the watch
// ends, which makes the adapter resubscribe.
func (w *PodWatcher) Subscribe(ctx context.Context, d sensor.Descriptor) (<-chan sensor.Update, error) {
	ns, name, err := splitTarget(d.Target)
	if err != nil {
		return nil, err
	}

	pods := w.client.CoreV1().Pods(ns)
	watcher, err := pods.Watch(ctx, metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("metadata.name", name).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch pod %s: %w", d.Target, err)
	}

	out := make(chan sensor.Update, 1)

	// The watch only reports changes; seed with the current phase.
	if pod, err := pods.Get(ctx, name, metav1.GetOptions{}); err == nil {
		out <- sensor.Update{Value: string(pod.Status.Phase)}
	}

	go func() {
		defer close(out)
		defer watcher.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.ResultChan():
				if !ok {
					return
				}
				u, ok := podUpdate(ev, name)
				if !ok {
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func podUpdate(ev watch.Event, name string) (sensor.Update, bool) {
	switch ev.Type {
	case watch.Error:
		return sensor.Update{Err: fmt.Errorf("watch of pod %s failed", name)}, true
	case watch.Deleted:
		return sensor.Update{Err: fmt.Errorf("pod %s was deleted", name)}, true
	}

	pod, ok := ev.Object.(*corev1.Pod)
	if !ok || pod.Name != name {
		return sensor.Update{}, false
	}
	return sensor.Update{Value: string(pod.Status.Phase)}, true
}

// Running is a readiness predicate for the pod.phase sensor.
func Running(v any) bool {
	s, ok := v.(string)
	return ok && s == string(corev1.PodRunning)
}

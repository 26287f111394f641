package kube

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/giantswarm/steward/internal/sensor"
)

func pendingPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}
}

func setPhase(t *testing.T, client *fake.Clientset, name string, phase corev1.PodPhase) {
	t.Helper()
	ctx := context.Background()
	pod, err := client.CoreV1().Pods("default").Get(ctx, name, metav1.GetOptions{})
	require.NoError(t, err)
	pod.Status.Phase = phase
	_, err = client.CoreV1().Pods("default").UpdateStatus(ctx, pod, metav1.UpdateOptions{})
	require.NoError(t, err)
}

func receive(t *testing.T, ch <-chan sensor.Update) sensor.Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "channel closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
		return sensor.Update{}
	}
}

func TestPodWatcher_EmitsPhaseChanges(t *testing.T) {
	client := fake.NewClientset(pendingPod("web-1"), pendingPod("web-2"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewPodWatcher(client)
	updates, err := w.Subscribe(ctx, sensor.Descriptor{Target: "default/web-1"})
	require.NoError(t, err)

	assert.Equal(t, "Pending", receive(t, updates).Value)

	// changes to other pods are filtered out
	setPhase(t, client, "web-2", corev1.PodFailed)
	setPhase(t, client, "web-1", corev1.PodRunning)

	assert.Equal(t, "Running", receive(t, updates).Value)

	require.NoError(t, client.CoreV1().Pods("default").Delete(ctx, "web-1", metav1.DeleteOptions{}))
	u := receive(t, updates)
	assert.ErrorContains(t, u.Err, "deleted")
}

func TestPodWatcher_ClosesOnCancel(t *testing.T) {
	client := fake.NewClientset(pendingPod("web-1"))
	ctx, cancel := context.WithCancel(context.Background())

	updates, err := NewPodWatcher(client).Subscribe(ctx, sensor.Descriptor{Target: "default/web-1"})
	require.NoError(t, err)
	receive(t, updates)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestPodWatcher_InvalidTarget(t *testing.T) {
	_, err := NewPodWatcher(fake.NewClientset()).Subscribe(context.Background(), sensor.Descriptor{Target: "web-1"})
	assert.ErrorContains(t, err, "namespace/name")
}

func TestRunning(t *testing.T) {
	assert.True(t, Running("Running"))
	assert.False(t, Running("Pending"))
	assert.False(t, Running(nil))
}

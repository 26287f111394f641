// Package kube runs entity processes as Kubernetes pods.
//
// Launcher creates one pod per location. Allocated location ports become host
// ports on the pod's container so sensors reach the process the same way as
// with the docker launcher. PodWatcher is a push source: it watches a single
// pod and emits its phase, and Launcher contributes it as the pod.phase sensor
// of every entity it launched.
package kube

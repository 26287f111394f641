// Package containerizer runs entity processes as containers.
//
// Runtime abstracts the container CLI. CLIRuntime drives the docker
// binary, or podman which accepts the same commands. Launcher adapts a
// runtime to the orchestrator: it starts one container per location, maps the
// allocated host ports, and provides a container.running sensor for every
// entity it launched.
//
//	runtime, err := containerizer.NewRuntime("docker")
//	if err != nil {
//	    return err
//	}
//	launcher := containerizer.NewLauncher(runtime, containerizer.WithNamePrefix("steward-"))
//
// Container names and IDs are stored as location metadata so Terminate can
// remove the container even when the start failed half way.
package containerizer

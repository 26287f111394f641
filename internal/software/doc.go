// Package software holds the built-in entity types: Tomcat application
// servers, Elasticsearch nodes and PostgreSQL databases.
//
// Each type is an orchestrator.Driver. Ports are taken from the entity's
// config key "<port>.port" as a port range and default to the type's usual
// range. Every configuration value is also published as a "config.<key>"
// sensor.
package software

// Package infra contains technical adapters: the MQTT publisher, the
// metrics exporters and the SQLite run store. These packages should depend
// only on the interfaces defined in the core packages.
package infra

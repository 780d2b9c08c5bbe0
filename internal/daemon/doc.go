// Package daemon wires configuration, storage, the job runner, and the HTTP
// server into a single-instance background process.
package daemon

// Package unisphere provides a small REST client for the Unisphere
// storage-array management API (sloprovisioning endpoints).
//
// Every call returns the HTTP status code together with the optionally
// parsed JSON body. Interpreting statuses is left to the caller; only
// transport failures are reported as errors.
//
// Unisphere ships with a self-signed certificate, so TLS verification is
// disabled unless the caller asks otherwise.
package unisphere

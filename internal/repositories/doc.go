// Package repositories implements SQLite persistence for credentials and devices.
//
// Key Implementations:
//   - [CredentialRepository] : the token store, with a compare-and-swap token update keyed on the previous refresh token
//   - [DeviceRepository] : the device table with unique identifiers and a nullable credential reference
//
// Constraint failures reported by the driver are translated into the sentinels of the shared package so callers can
// match them with [errors.Is] without importing the driver.
package repositories

// Package models defines the entities shared by the token store, the device directory and the now-playing pipeline.
//
// Persistent entities:
//   - [Credential] : one stored OAuth token triple for a linked Spotify account
//   - [Device] : a registered ESP32 display, optionally linked to a [Credential]
//
// Request-scoped values (never persisted or cached):
//   - [NowPlaying] : normalized playback state returned to devices and the status page
//   - [Track] : track metadata with an ordered artist list
//   - [TranscodedImage] : cover art packed as RGB565 inside a minimal bitmap container
package models

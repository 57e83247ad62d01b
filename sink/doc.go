// Package sink declares the capability interfaces UploadQueue variants
// consume from an external remote service: existence assurance, point and
// event insertion, and a cheap connectivity probe. The core never implements
// these - authentication, HTTP transport, and the concrete REST client are
// outside collaborators that plug in here.
package sink

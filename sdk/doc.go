// Package cloudy provides the client SDK for the Cloudy assistant platform:
// a real-time room session client, an authenticated REST API client, and a
// Gemini-backed inference client.
//
// All three services are constructor-injected; the SDK holds no global
// instances. Events from the room are delivered in arrival order through the
// typed Callbacks surface.
package cloudy

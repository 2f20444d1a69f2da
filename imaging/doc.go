// Package imaging turns image bytes into pixel data and texture handles,
// and wraps file loads into futurize controllers.
//
// Callers go through the Backend interface; concrete backends are looked
// up by name with Open so that the choice is a configuration value.
package imaging

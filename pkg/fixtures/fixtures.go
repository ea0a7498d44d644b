// Package fixtures renders raw catalog and activity objects in their wire
// layout, for tests and local development seeds.
package fixtures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Object is one raw JSON object in wire form.
type Object map[string]any

// CatalogObject returns a valid catalog object with the given fields merged
// over a baseline record.
func CatalogObject(overrides Object) Object {
	obj := Object{
		"artist_id":        "AR5KOSW1187FB35FF4",
		"artist_latitude":  49.80388,
		"artist_location":  "Dubai UAE",
		"artist_longitude": 15.47491,
		"artist_name":      "Elena",
		"duration":         269.58279,
		"num_songs":        1,
		"song_id":          "SOZCTXZ12AB0182364",
		"title":            "Setanta matins",
		"year":             2004,
	}
	for k, v := range overrides {
		if v == nil {
			delete(obj, k)
			continue
		}
		obj[k] = v
	}
	return obj
}

// ActivityObject returns a valid NextSong activity event with the given
// fields merged over a baseline record.
func ActivityObject(overrides Object) Object {
	obj := Object{
		"artist":        "Elena",
		"auth":          "Logged In",
		"firstName":     "Lily",
		"gender":        "F",
		"itemInSession": 0,
		"lastName":      "Koch",
		"length":        269.58279,
		"level":         "paid",
		"location":      "Chicago-Naperville-Elgin, IL-IN-WI",
		"method":        "PUT",
		"page":          "NextSong",
		"registration":  1.541048010796e12,
		"sessionId":     818,
		"song":          "Setanta matins",
		"status":        200,
		"ts":            int64(1541105830796),
		"userAgent":     `"Mozilla/5.0 (X11; Linux x86_64)"`,
		"userId":        "15",
	}
	for k, v := range overrides {
		if v == nil {
			delete(obj, k)
			continue
		}
		obj[k] = v
	}
	return obj
}

// Catalog renders objects one after another, the layout of a raw catalog
// file.
func Catalog(objects ...Object) []byte {
	var buf bytes.Buffer
	for _, obj := range objects {
		data, err := json.Marshal(obj)
		if err != nil {
			panic(fmt.Sprintf("fixtures: marshal catalog object: %v", err))
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// NDJSON renders objects one per line, the layout of a raw activity file.
func NDJSON(objects ...Object) []byte {
	return Catalog(objects...)
}

// WriteTree writes raw objects to files under root, creating intermediate
// directories.
func WriteTree(root string, files map[string][]byte) error {
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create fixture directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write fixture %s: %w", name, err)
		}
	}
	return nil
}

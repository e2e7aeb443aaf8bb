// Package storage manages the flat media directory.
//
// Assets are named {prefix}_{NN}.{ext} where NN is the lowest index not yet
// taken on disk for that prefix and extension. Every write goes to a hidden
// ".part" file first and is renamed into place only once complete, so a
// visible asset is never truncated.
//
// A manifest (.manifest.json) maps a stable asset key, normally the URL path,
// to the file written for it. A later run that meets the same asset finds
// the file through the manifest and skips the download.
//
//	m, err := storage.NewManager("images")
//	if name, ok := m.Lookup(key); ok {
//	    return name
//	}
//	name := m.NextFreeName("2025-06-16", "jpg")
//	if err := m.SaveFile(bytes.NewReader(body), name); err != nil {
//	    m.Release(name)
//	    return err
//	}
//	err = m.Record(key, name)
package storage

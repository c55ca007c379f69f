// Package storage decides where downloads live on disk.
//
// Every post has one deterministic location:
//
//	<root>/<sanitized search name>/<id>[.<md5>].<ext>
//
// While a download is in progress the bytes go to the same path with
// PartialSuffix appended. The partial file's existence and size are the only
// resume state; a download is committed by renaming it to the final path, so
// a file at the final path is always complete.
//
// Usage:
//
//	layout := storage.NewLayout("downloads", false)
//	if err := layout.EnsureDir("cats"); err != nil {
//	    return err
//	}
//	dest := layout.PathFor("cats", post)
//	present, err := storage.Exists(dest)
package storage

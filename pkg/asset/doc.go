// Package asset saves one item to disk: a pretty-printed JSON snapshot of its
// record and the attached media file.
//
// Media files are streamed into a temporary file and renamed into place, so a
// file at the final path is always complete and is never downloaded again.
package asset

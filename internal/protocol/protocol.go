package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

const (
	DefaultHTTPPort = "5000"
	DiscoveryPort   = 9999
	BufferSize      = 1024
	DiscoveryMsg    = "DISCOVER_ECGVIEW"

	// Endpoints
	UploadPath  = "/upload_ecg"
	SummaryPath = "/api/v1/ecg/summary"
	HealthPath  = "/health"

	// UploadField is the multipart form field carrying the ECG export.
	UploadField = "ecg_file"
	LayoutQuery = "layout"

	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Plain-text bodies the upload endpoint answers with.
const (
	MsgNoFileSent     = "no file sent"
	MsgNoFileSelected = "no file selected"
	MsgTooLarge       = "upload too large"
	MsgRenderFailed   = "failed to render the ECG chart. check the XML format and metadata."
)

// ComputeChecksum calculates the SHA256 hash of everything r yields
func ComputeChecksum(r io.Reader) ([32]byte, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return [32]byte{}, err
	}

	var checksum [32]byte
	copy(checksum[:], hash.Sum(nil))
	return checksum, nil
}

// CacheKey identifies a rendered chart by layout and upload checksum.
func CacheKey(layout string, checksum [32]byte) string {
	return layout + ":" + hex.EncodeToString(checksum[:])
}

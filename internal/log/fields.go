// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldAlbumCode = "album_code"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Capture fields
	FieldPhotoIndex  = "photo_index"
	FieldPhotoTotal  = "photo_total"
	FieldPhotoPath   = "photo_path"
	FieldPrintCopies = "print_copies"

	// Path fields
	FieldPath = "path"
)

package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/alumnijourney/apiserver/internal/apperror"
)

const maxAvatarSize = 5 << 20

var avatarContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadAvatar accepts a multipart "avatar" file and stores it for the caller.
func (h *AuthHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize+1<<20)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeAppError(w, r, h.log, apperror.NewValidation("avatar", "Upload a valid image."))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("avatar")
	if err != nil {
		writeAppError(w, r, h.log, apperror.NewValidation("avatar", "No file was submitted."))
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, maxAvatarSize)
	if errors.Is(err, errFileTooLarge) {
		writeAppError(w, r, h.log, apperror.NewValidation("avatar", "Ensure the file is no larger than 5 MB."))
		return
	}
	if err != nil {
		writeAppError(w, r, h.log, apperror.NewValidation("avatar", "Upload a valid image."))
		return
	}
	if len(data) == 0 {
		writeAppError(w, r, h.log, apperror.NewValidation("avatar", "The submitted file is empty."))
		return
	}
	contentType := http.DetectContentType(data)
	if !avatarContentTypes[contentType] {
		writeAppError(w, r, h.log, apperror.NewValidation("avatar", "Upload a valid image."))
		return
	}

	caller, _ := UserFromContext(r.Context())
	updated, err := h.users.SetAvatar(r.Context(), caller, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Message: "Avatar updated successfully", User: updated.View()})
}

// GetAvatar streams a user's avatar with the content type recorded at upload.
func (h *AuthHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "userID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	rc, contentType, err := h.users.Avatar(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("avatar stream interrupted")
	}
}

var errFileTooLarge = errors.New("file too large")

func readFileLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}

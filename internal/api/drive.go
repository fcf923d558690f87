package api

import (
	"errors"
	"net/http"

	"drrm-api/internal/drive"
	"drrm-api/internal/galleries"
	"drrm-api/internal/logger"

	"github.com/gorilla/mux"
)

func driveImagesHandler(dl ImageLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID := r.URL.Query().Get("folderId")
		if folderID == "" {
			writeError(w, http.StatusBadRequest, "folderId parameter is required")
			return
		}
		writeImages(w, r, dl, folderID)
	}
}

func galleriesHandler(gc *galleries.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := []galleries.Gallery{}
		if gc != nil {
			list = gc.List()
		}
		writeJSON(w, http.StatusOK, map[string]any{"galleries": list})
	}
}

func galleryImagesHandler(gc *galleries.Config, dl ImageLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := mux.Vars(r)["view"]
		var g galleries.Gallery
		ok := false
		if gc != nil {
			g, ok = gc.Get(view)
		}
		if !ok {
			writeError(w, http.StatusNotFound, "Unknown gallery "+view)
			return
		}
		writeImages(w, r, dl, g.FolderID)
	}
}

// writeImages：错误映射与 Drive 图库函数一致，上游状态码原样透传
func writeImages(w http.ResponseWriter, r *http.Request, dl ImageLister, folderID string) {
	if dl == nil {
		writeError(w, http.StatusInternalServerError, drive.ErrNoAPIKey.Error())
		return
	}
	images, err := dl.ListImages(r.Context(), folderID)
	var apiErr *drive.APIError
	switch {
	case err == nil:
	case errors.Is(err, drive.ErrNoAPIKey):
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case errors.As(err, &apiErr):
		writeJSON(w, apiErr.Status, map[string]any{
			"error":  "Failed to fetch images from Google Drive",
			"status": apiErr.Status,
		})
		return
	default:
		logger.L().Error("drive_images_error", "folder", folderID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}
	w.Header().Set("cache-control", "max-age=3600")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "images": images, "count": len(images)})
}

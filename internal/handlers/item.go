package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/campusfind/apiserver/internal/services"
	"github.com/campusfind/apiserver/internal/storage"
	"github.com/campusfind/apiserver/internal/store"
	"github.com/campusfind/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxMultipartMemory = 16 << 20
	maxImageBytes      = 5 << 20
	occurredOnLayout   = "2006-01-02"

	formFieldImage        = "image"
	formFieldDisposition  = "disposition"
	formFieldName         = "name"
	formFieldCategory     = "category"
	formFieldDescription  = "description"
	formFieldLocation     = "location"
	formFieldOccurredOn   = "occurred_on"
	formFieldContactName  = "contact_name"
	formFieldContactEmail = "contact_email"
	formFieldContactPhone = "contact_phone"
	formFieldRewardOffer  = "reward_offer"
	formFieldDepartment   = "department"
)

// ImageFile is an uploaded item photo pending ingestion.
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ItemHandler provides HTTP handlers for lost-and-found reports.
type ItemHandler struct {
	itemService  *services.ItemService
	claimService *services.ClaimService
	images       *storage.Storage
	logger       *slog.Logger
}

// NewItemHandler constructs a handler with the provided dependencies.
func NewItemHandler(itemService *services.ItemService, claimService *services.ClaimService, images *storage.Storage, logger *slog.Logger) *ItemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemHandler{
		itemService:  itemService,
		claimService: claimService,
		images:       images,
		logger:       logger,
	}
}

// ItemRouter registers item routes on the given router. All routes require
// a verified session.
func ItemRouter(r chi.Router, handler *ItemHandler, sessionMiddleware func(http.Handler) http.Handler) {
	r.Use(sessionMiddleware)
	r.Get("/", handler.ListItems)
	r.Post("/", handler.CreateItem)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetItem)
		r.Put("/", handler.UpdateItem)
		r.Delete("/", handler.DeleteItem)
		r.Patch("/claim", handler.ClaimItem)
	})
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemService.List(r.Context())
	if err != nil {
		writeFailure(w, http.StatusServiceUnavailable, "failed to list items")
		return
	}

	count := len(items)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "items fetched",
		Count:   &count,
		Items:   items,
	})
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.itemService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "item not found")
			return
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to fetch item")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "item fetched", Item: item})
}

// CreateItem ingests the uploaded image first and persists the report only
// once the image reference has resolved. An item never exists without one.
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, errs := parseItemForm(r, true)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	image, err := h.ingestImage(r, req.Image)
	if err != nil {
		writeFailure(w, http.StatusServiceUnavailable, "failed to store image")
		return
	}

	item := req.toItem()
	item.UserID = userID
	item.Image = image

	created, err := h.itemService.Create(r.Context(), item)
	if err != nil {
		// Best effort: do not leave the orphaned upload behind.
		if delErr := h.images.Delete(r.Context(), image.ObjectKey); delErr != nil {
			h.logger.Warn("failed to remove orphaned image", "object_key", image.ObjectKey, "error", delErr)
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to create item")
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Message: "item reported successfully",
		Item:    created,
	})
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.itemService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "item not found")
			return
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to fetch item")
		return
	}

	req, errs := parseItemForm(r, false)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	item := req.toItem()
	item.ID = id
	item.UserID = existing.UserID
	item.Image = existing.Image

	// Replace the image only when a new file was uploaded.
	if req.Image.Data != nil {
		image, err := h.ingestImage(r, req.Image)
		if err != nil {
			writeFailure(w, http.StatusServiceUnavailable, "failed to store image")
			return
		}
		item.Image = image
		if delErr := h.images.Delete(r.Context(), existing.Image.ObjectKey); delErr != nil {
			h.logger.Warn("failed to remove replaced image", "object_key", existing.Image.ObjectKey, "error", delErr)
		}
	}

	updated, err := h.itemService.Update(r.Context(), item)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "item not found")
			return
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to update item")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "item updated successfully", Item: updated})
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.itemService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "item not found")
			return
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to fetch item")
		return
	}

	if err := h.itemService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "item not found")
			return
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to delete item")
		return
	}

	if delErr := h.images.Delete(r.Context(), item.Image.ObjectKey); delErr != nil {
		h.logger.Warn("failed to remove image of deleted item", "object_key", item.Image.ObjectKey, "error", delErr)
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "item deleted successfully"})
}

// ClaimItem performs the unclaimed→claimed transition. The claimant
// identity comes from the verified session, never from the request body.
// Retrying an already-claimed item is safe: it returns the same conflict.
func (h *ItemHandler) ClaimItem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseItemID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.claimService.Claim(r.Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownUser):
			writeFailure(w, http.StatusUnauthorized, "unknown user")
		case errors.Is(err, store.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "item not found")
		case errors.Is(err, store.ErrAlreadyClaimed):
			writeFailure(w, http.StatusConflict, "item has already been claimed")
		default:
			writeFailure(w, http.StatusServiceUnavailable, "failed to claim item")
		}
		return
	}

	resp := APIResponse{
		Success: true,
		Message: "item claimed successfully",
		Item:    result.Item,
	}
	if !result.NotificationQueued {
		resp.Warning = "claim saved, but the reporter could not be notified"
	}
	writeJSON(w, http.StatusOK, resp)
}

// ingestImage uploads the photo under a fresh object key and returns the
// resolved reference.
func (h *ItemHandler) ingestImage(r *http.Request, file ImageFile) (types.ItemImage, error) {
	key := fmt.Sprintf("items/%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(file.Filename)))
	err := h.images.Put(r.Context(), key, bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType)
	if err != nil {
		return types.ItemImage{}, err
	}
	return types.ItemImage{
		URL:       h.images.PublicURL(key),
		ObjectKey: key,
	}, nil
}

// ItemUpsertRequest represents the parsed multipart form payload.
type ItemUpsertRequest struct {
	Disposition  string
	Name         string
	Category     string
	Description  string
	Location     string
	OccurredOn   time.Time
	ContactName  string
	ContactEmail string
	ContactPhone string
	RewardOffer  string
	Department   string
	Image        ImageFile
}

func (req ItemUpsertRequest) toItem() types.Item {
	return types.Item{
		Disposition:  req.Disposition,
		Name:         req.Name,
		Category:     req.Category,
		Description:  req.Description,
		Location:     req.Location,
		OccurredOn:   req.OccurredOn,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		RewardOffer:  req.RewardOffer,
		Department:   req.Department,
	}
}

func parseItemID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "itemID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid item id")
	}
	return id, nil
}

// parseItemForm validates the multipart payload. The image is required on
// create and optional on update.
func parseItemForm(r *http.Request, imageRequired bool) (ItemUpsertRequest, []string) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return ItemUpsertRequest{}, []string{"invalid multipart form"}
	}

	var errs []string
	req := ItemUpsertRequest{
		Disposition:  strings.TrimSpace(r.FormValue(formFieldDisposition)),
		Name:         strings.TrimSpace(r.FormValue(formFieldName)),
		Category:     strings.TrimSpace(r.FormValue(formFieldCategory)),
		Description:  strings.TrimSpace(r.FormValue(formFieldDescription)),
		Location:     strings.TrimSpace(r.FormValue(formFieldLocation)),
		ContactName:  strings.TrimSpace(r.FormValue(formFieldContactName)),
		ContactEmail: strings.TrimSpace(r.FormValue(formFieldContactEmail)),
		ContactPhone: strings.TrimSpace(r.FormValue(formFieldContactPhone)),
		RewardOffer:  strings.TrimSpace(r.FormValue(formFieldRewardOffer)),
		Department:   strings.TrimSpace(r.FormValue(formFieldDepartment)),
	}

	if !types.ValidDisposition(req.Disposition) {
		errs = append(errs, `disposition must be "Lost" or "Found"`)
	}
	required := []struct {
		field string
		value string
	}{
		{formFieldName, req.Name},
		{formFieldCategory, req.Category},
		{formFieldDescription, req.Description},
		{formFieldLocation, req.Location},
		{formFieldContactName, req.ContactName},
		{formFieldContactEmail, req.ContactEmail},
		{formFieldContactPhone, req.ContactPhone},
		{formFieldDepartment, req.Department},
	}
	for _, f := range required {
		if f.value == "" {
			errs = append(errs, f.field+" is required")
		}
	}

	rawDate := strings.TrimSpace(r.FormValue(formFieldOccurredOn))
	if rawDate == "" {
		errs = append(errs, formFieldOccurredOn+" is required")
	} else {
		occurredOn, err := time.Parse(occurredOnLayout, rawDate)
		if err != nil {
			errs = append(errs, formFieldOccurredOn+" must be a date in YYYY-MM-DD format")
		} else {
			req.OccurredOn = occurredOn
		}
	}

	image, imageErrs := parseImageFile(r.MultipartForm, imageRequired)
	errs = append(errs, imageErrs...)
	req.Image = image

	return req, errs
}

func parseImageFile(form *multipart.Form, required bool) (ImageFile, []string) {
	if form == nil {
		return ImageFile{}, []string{"missing form data"}
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		if required {
			return ImageFile{}, []string{"please upload an image"}
		}
		return ImageFile{}, nil
	}
	if len(files) > 1 {
		return ImageFile{}, []string{"only one image is allowed"}
	}

	fileHeader := files[0]
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return ImageFile{}, []string{"uploaded file must be an image"}
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ImageFile{}, []string{"failed to read uploaded image"}
	}
	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return ImageFile{}, []string{err.Error()}
	}

	return ImageFile{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded image too large")
	}
	return data, nil
}

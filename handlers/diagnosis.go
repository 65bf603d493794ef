package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/services/diagnosis"
	"autodiag/services/storage"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxMultipartMemory bounds the in-memory part of a media upload.
const MaxMultipartMemory = 16 << 20

type DiagnosisHandler struct {
	Diagnoses diagnosis.DiagnosisService
	Storage   storage.StorageService
}

func NewDiagnosisHandler(svc diagnosis.DiagnosisService, store storage.StorageService) *DiagnosisHandler {
	return &DiagnosisHandler{Diagnoses: svc, Storage: store}
}

// uploadedMedia is a stored file that must be removed if the diagnosis is
// not created.
type uploadedMedia struct {
	publicID     string
	resourceType string
}

// readInput accepts either a JSON body carrying media URLs or a multipart form
// carrying the media itself. Files are only stored once the form is valid and
// the submitter has quota left.
func (h *DiagnosisHandler) readInput(c *gin.Context, sub diagnosis.Submitter) (models.DiagnosisInput, []uploadedMedia, bool) {
	var in models.DiagnosisInput
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return in, nil, bindJSON(c, &in)
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.RespondError(c, utils.FieldError("body", "invalid multipart form"))
		return in, nil, false
	}
	in.VehicleID = c.PostForm("vehicleId")
	in.Symptoms = c.PostForm("symptoms")
	in.Region = c.PostForm("region")
	in.Specialization = c.PostForm("specialization")
	for field, dst := range map[string]**float64{"latitude": &in.Latitude, "longitude": &in.Longitude} {
		raw := strings.TrimSpace(c.PostForm(field))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			utils.RespondError(c, utils.FieldError(field, "must be a number"))
			return in, nil, false
		}
		*dst = &v
	}

	images := form.File["images"]
	if len(images) > storage.MaxImages {
		utils.RespondError(c, utils.FieldError("images", fmt.Sprintf("at most %d images", storage.MaxImages)))
		return in, nil, false
	}
	voice := form.File["voice"]
	if len(voice) > 1 {
		utils.RespondError(c, utils.FieldError("voice", "one voice note per diagnosis"))
		return in, nil, false
	}
	for i, fh := range images {
		if err := storage.ValidateImage(fmt.Sprintf("images[%d]", i), fh.Filename, fh.Size); err != nil {
			utils.RespondError(c, err)
			return in, nil, false
		}
	}
	if len(voice) == 1 {
		if err := storage.ValidateVoice("voice", voice[0].Filename, voice[0].Size); err != nil {
			utils.RespondError(c, err)
			return in, nil, false
		}
	}
	if len(images) == 0 && len(voice) == 0 {
		return in, nil, true
	}
	if h.Storage == nil {
		utils.RespondError(c, fmt.Errorf("media storage is not configured"))
		return in, nil, false
	}
	if err := h.checkQuota(c, sub); err != nil {
		utils.RespondError(c, err)
		return in, nil, false
	}

	var stored []uploadedMedia
	for _, fh := range images {
		out, err := h.upload(c, fh, storage.FolderDiagnosisImages, "image")
		if err != nil {
			h.discard(c, stored)
			utils.RespondError(c, err)
			return in, nil, false
		}
		stored = append(stored, uploadedMedia{out.PublicID, "image"})
		in.ImageURLs = append(in.ImageURLs, out.URL)
	}
	if len(voice) == 1 {
		// Cloudinary files audio under the video resource type.
		out, err := h.upload(c, voice[0], storage.FolderDiagnosisVoice, "video")
		if err != nil {
			h.discard(c, stored)
			utils.RespondError(c, err)
			return in, nil, false
		}
		stored = append(stored, uploadedMedia{out.PublicID, "video"})
		in.VoiceURL = out.URL
	}
	return in, stored, true
}

// checkQuota rejects a submitter with nothing left before any media is stored.
// Create still consumes the quota atomically.
func (h *DiagnosisHandler) checkQuota(c *gin.Context, sub diagnosis.Submitter) error {
	var (
		q   *models.QuotaSummary
		err error
	)
	if sub.IsGuest() {
		q, err = h.Diagnoses.GuestQuota(c.Request.Context(), sub.Device.DeviceID)
	} else {
		q, err = h.Diagnoses.Quota(c.Request.Context(), sub.UserID)
	}
	if err != nil {
		return err
	}
	if q.FreeRemaining+q.PaidRemaining <= 0 {
		return fmt.Errorf("no diagnoses left: %w", utils.ErrQuotaExceeded)
	}
	return nil
}

func (h *DiagnosisHandler) upload(c *gin.Context, fh *multipart.FileHeader, folder, resourceType string) (*storage.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	out, err := h.Storage.Upload(c.Request.Context(), f, folder, resourceType)
	if err != nil {
		getLogger(c).Error("media upload failed", zap.String("file", fh.Filename), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// discard removes media stored for a diagnosis that was never created.
func (h *DiagnosisHandler) discard(c *gin.Context, media []uploadedMedia) {
	for _, m := range media {
		if err := h.Storage.Delete(c.Request.Context(), m.publicID, m.resourceType); err != nil {
			getLogger(c).Warn("orphaned upload", zap.String("publicId", m.publicID), zap.Error(err))
		}
	}
}

func (h *DiagnosisHandler) create(c *gin.Context, sub diagnosis.Submitter) {
	in, media, ok := h.readInput(c, sub)
	if !ok {
		return
	}
	created, err := h.Diagnoses.Create(c.Request.Context(), sub, in)
	if err != nil {
		h.discard(c, media)
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *DiagnosisHandler) Create(c *gin.Context) {
	h.create(c, diagnosis.Submitter{UserID: middleware.UserID(c), Device: middleware.Device(c)})
}

func (h *DiagnosisHandler) CreateGuest(c *gin.Context) {
	h.create(c, diagnosis.Submitter{Device: middleware.Device(c)})
}

func (h *DiagnosisHandler) List(c *gin.Context) {
	page, ok := pageFrom(c)
	if !ok {
		return
	}
	list, err := h.Diagnoses.List(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagnoses": list, "page": page.Page, "limit": page.Limit})
}

func (h *DiagnosisHandler) Get(c *gin.Context) {
	d, err := h.Diagnoses.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DiagnosisHandler) GetGuest(c *gin.Context) {
	d, err := h.Diagnoses.GetGuest(c.Request.Context(), middleware.Device(c).DeviceID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DiagnosisHandler) Delete(c *gin.Context) {
	if err := h.Diagnoses.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DiagnosisHandler) Leads(c *gin.Context) {
	leads, err := h.Diagnoses.Leads(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

func (h *DiagnosisHandler) Quota(c *gin.Context) {
	q, err := h.Diagnoses.Quota(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *DiagnosisHandler) GuestQuota(c *gin.Context) {
	q, err := h.Diagnoses.GuestQuota(c.Request.Context(), middleware.Device(c).DeviceID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

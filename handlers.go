package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Rodneymondela/slip-management/models"
	"github.com/Rodneymondela/slip-management/pkg/dedupe"
	"github.com/Rodneymondela/slip-management/pkg/ocr"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

const maxUploadBytes = 10 * 1024 * 1024

var allowedExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".pdf": true}

// pipeline is shared across requests; each ProcessFile call owns its buffers.
// Set by initPipeline after the environment is loaded.
var pipeline *ocr.Pipeline

func initPipeline() {
	pipeline = ocr.NewPipeline(ocr.NewTesseractEngine(), engineConfigFromEnv())
}

func engineConfigFromEnv() ocr.Config {
	var cfg ocr.Config
	cfg.Language = os.Getenv("OCR_LANG")
	if v := os.Getenv("OCR_MIN_CONFIDENCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinTokenConfidence = &n
		}
	}
	if v := os.Getenv("VAT_RATE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.VATRate = d
		}
	}
	return cfg.Normalize()
}

func ocrTimeout() time.Duration {
	if v := os.Getenv("OCR_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 2 * time.Minute
}

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/documents", uploadDocumentHandler)
	authGroup.GET("/documents", listDocumentsHandler)
	authGroup.GET("/documents/:id", getDocumentHandler)
	authGroup.GET("/documents/:id/status", documentStatusHandler)
	authGroup.GET("/documents/:id/fields", documentFieldsHandler)
	authGroup.POST("/documents/:id/confirm", confirmDocumentHandler)
	authGroup.POST("/journal", confirmManualHandler)
	authGroup.GET("/journal", listJournalHandler)
	authGroup.GET("/journal/summary", journalSummaryHandler)
	authGroup.GET("/journal/:id", getJournalHandler)
	authGroup.PUT("/journal/:id", updateJournalHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	username := usernameVal.(string)
	c.JSON(http.StatusOK, gin.H{"username": username})
}

// getUserFromContext fetches the currently authenticated user using the username set by jwtAuthMiddleware
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	uname := unameVal.(string)
	var user models.User
	if err := db.Where("username = ?", uname).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := Register(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Generate JWT token. Resolve role name from RoleID (we only store role_id now).
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// uniqueStoredName builds a filesystem-safe unique name for an upload.
func uniqueStoredName(original string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b) + strings.ToLower(filepath.Ext(original))
}

// uploadDocumentHandler stores a slip and kicks off asynchronous OCR. The
// client polls /documents/:id/status until the pipeline settles.
func uploadDocumentHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 10MB)"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type (use PNG/JPG/PDF)"})
		return
	}
	docType := c.PostForm("type")
	if docType != "invoice" {
		docType = "receipt"
	}
	name := uniqueStoredName(file.Filename)
	fullPath := filepath.Join(uploadBaseDir(), name)
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	thumbPath := ""
	if ext != ".pdf" {
		if src, err := imaging.Open(fullPath); err == nil {
			thumbName := strings.TrimSuffix(name, ext) + ".jpg"
			tp := filepath.Join(thumbBaseDir(), thumbName)
			if err := imaging.Save(imaging.Fit(src, 480, 480, imaging.Lanczos), tp, imaging.JPEGQuality(85)); err == nil {
				thumbPath = tp
			} else {
				log.Printf("thumbnail generation failed for %s: %v", fullPath, err)
			}
		}
	}

	doc := models.Document{
		UserID:        user.ID,
		Type:          docType,
		FilePath:      fullPath,
		ThumbnailPath: thumbPath,
		Status:        models.DocPending,
	}
	if err := db.Create(&doc).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	go processDocument(doc.ID, fullPath)
	c.JSON(http.StatusAccepted, gin.H{"id": doc.ID, "status": models.DocPending})
}

// processDocument runs the OCR pipeline for one document. Each document is an
// independent unit of work owning its own buffers; only status/progress rows
// are written while it runs.
func processDocument(docID uint, path string) {
	db.Model(&models.Document{}).Where("id = ?", docID).
		Updates(map[string]interface{}{"status": models.DocProcessing, "progress": "starting"})

	ctx, cancel := context.WithTimeout(context.Background(), ocrTimeout())
	defer cancel()

	progress := func(page, total int) {
		db.Model(&models.Document{}).Where("id = ?", docID).
			Update("progress", "page "+strconv.Itoa(page)+" of "+strconv.Itoa(total))
	}

	text, err := pipeline.ExtractFile(ctx, path, progress)
	if err != nil {
		reason := classifyFailure(err)
		log.Printf("OCR failed doc=%d: %v", docID, err)
		db.Model(&models.Document{}).Where("id = ?", docID).
			Updates(map[string]interface{}{"status": models.DocFailed, "failed_reason": reason, "progress": ""})
		return
	}
	updates := map[string]interface{}{"ocr_text": text, "progress": ""}
	switch {
	case strings.TrimSpace(text) == "":
		updates["status"] = models.DocFailed
		updates["failed_reason"] = "no legible text"
	case pipeline.Parser().ParseFields(text).TotalAmount == nil:
		// legible text but no recoverable amount: needs a human eye
		updates["status"] = models.DocNeedsReview
	default:
		updates["status"] = models.DocParsed
	}
	db.Model(&models.Document{}).Where("id = ?", docID).Updates(updates)
}

// classifyFailure maps pipeline errors onto the stored failure taxonomy.
func classifyFailure(err error) string {
	switch {
	case errors.Is(err, ocr.ErrImageRead):
		return "image unreadable"
	case errors.Is(err, ocr.ErrConversion):
		return "pdf conversion failed"
	case errors.Is(err, ocr.ErrEngine):
		return "ocr engine failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "ocr timed out"
	default:
		return "processing failed"
	}
}

// ownedDocument loads the document in :id, enforcing ownership (admin sees all).
func ownedDocument(c *gin.Context) (*models.Document, bool) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return nil, false
	}
	role, _ := c.Get("role")
	var doc models.Document
	if err := db.First(&doc, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	if role != "administrator" && doc.UserID != user.ID {
		// 404 rather than 403 to avoid leaking document existence
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return &doc, true
}

func listDocumentsHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var docs []models.Document
	q := db.Model(&models.Document{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", s)
	}
	if err := q.Order("id desc").Limit(100).Find(&docs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, docs)
}

func getDocumentHandler(c *gin.Context) {
	doc, ok := ownedDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// documentStatusHandler is polled by the frontend while a slip processes.
func documentStatusHandler(c *gin.Context) {
	doc, ok := ownedDocument(c)
	if !ok {
		return
	}
	resp := gin.H{"doc_status": doc.Status}
	if doc.Progress != "" {
		resp["progress"] = doc.Progress
	}
	if doc.Status == models.DocFailed {
		resp["error"] = doc.FailedReason
	}
	c.JSON(http.StatusOK, resp)
}

// documentFieldsHandler re-parses the stored OCR text into the editable
// candidate record shown on the confirmation form.
func documentFieldsHandler(c *gin.Context) {
	doc, ok := ownedDocument(c)
	if !ok {
		return
	}
	if doc.Status != models.DocParsed && doc.Status != models.DocNeedsReview {
		c.JSON(http.StatusConflict, gin.H{"error": "document is \"" + doc.Status + "\" and cannot be confirmed yet"})
		return
	}
	fields := pipeline.Parser().ParseFields(doc.OCRText)
	c.JSON(http.StatusOK, gin.H{"document_id": doc.ID, "fields": fields})
}

// confirmRequest carries the human-reviewed field values. Amounts come in as
// strings so both decimal separator conventions survive the trip.
type confirmRequest struct {
	SupplierName      string `json:"supplier_name"`
	SupplierVATNumber string `json:"supplier_vat_number"`
	EntryDate         string `json:"entry_date" binding:"required"`
	ReferenceNo       string `json:"reference_no"`
	Subtotal          string `json:"subtotal"`
	VATRate           string `json:"vat_rate"`
	VATAmount         string `json:"vat_amount"`
	TotalAmount       string `json:"total_amount"`
	Currency          string `json:"currency"`
	PaymentMethod     string `json:"payment_method"`
	Category          string `json:"category"`
	Notes             string `json:"notes"`
	OverrideDuplicate bool   `json:"override_duplicate"`
}

func optDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := ocr.NormalizeMoney(s)
	if err != nil {
		return nil
	}
	return &d
}

// totalsConsistent checks subtotal + VAT == total within a 2 cent tolerance.
// Missing values are not an inconsistency; the check binds only a full triple.
func totalsConsistent(sub, vat, total *decimal.Decimal) bool {
	if sub == nil || vat == nil || total == nil {
		return true
	}
	tol := decimal.RequireFromString("0.02")
	return sub.Add(*vat).Sub(*total).Abs().LessThanOrEqual(tol)
}

// dateTooFar reports whether d is more than 3 days past now, date granularity.
// Exactly 3 days ahead is still accepted.
func dateTooFar(d, now time.Time) bool {
	limit := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 3)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return day.After(limit)
}

// confirmDocumentHandler commits a reviewed slip to the journal. This is the
// confirmation boundary: totals consistency, the future-date check and the
// duplicate scan all happen here, not in the parser.
func confirmDocumentHandler(c *gin.Context) {
	doc, ok := ownedDocument(c)
	if !ok {
		return
	}
	saveJournalEntry(c, doc.UserID, &doc.ID)
}

// confirmManualHandler records a journal entry with no backing document.
func confirmManualHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	saveJournalEntry(c, user.ID, nil)
}

func saveJournalEntry(c *gin.Context, userID uint, docID *uint) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entryDate, err := ocr.ParseDayFirstDate(req.EntryDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized entry_date"})
		return
	}

	total := optDecimal(req.TotalAmount)
	subtotal := optDecimal(req.Subtotal)
	vatAmount := optDecimal(req.VATAmount)
	vatRate := engineConfigFromEnv().VATRate
	if d := optDecimal(req.VATRate); d != nil {
		vatRate = *d
	}
	// derive the missing pair from a VAT-inclusive total
	if total != nil && subtotal == nil && vatAmount == nil {
		s, v := ocr.SplitTotal(*total, vatRate)
		subtotal, vatAmount = &s, &v
	}
	if !totalsConsistent(subtotal, vatAmount, total) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subtotal + VAT must match total (within 2c)"})
		return
	}
	if dateTooFar(entryDate, time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date cannot be in the future"})
		return
	}

	if !req.OverrideDuplicate {
		supplier := strings.TrimSpace(req.SupplierName)
		detector := dedupe.New(gormEntrySource{db})
		var supplierPtr *string
		if supplier != "" {
			supplierPtr = &supplier
		}
		dups, err := detector.Find(userID, supplierPtr, total, &entryDate)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "duplicate check failed"})
			return
		}
		if len(dups) > 0 {
			c.JSON(http.StatusConflict, gin.H{
				"error":      "possible duplicate entries found; set override_duplicate to save anyway",
				"duplicates": dups,
			})
			return
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = "ZAR"
	}
	payment := req.PaymentMethod
	if payment == "" {
		payment = ocr.PaymentUnknown
	}
	entry := models.JournalEntry{
		UserID:            userID,
		DocumentID:        docID,
		EntryDate:         entryDate,
		SupplierName:      strings.TrimSpace(req.SupplierName),
		SupplierVATNumber: req.SupplierVATNumber,
		ReferenceNo:       req.ReferenceNo,
		Subtotal:          nullDecimal(subtotal),
		VATRate:           vatRate,
		VATAmount:         nullDecimal(vatAmount),
		TotalAmount:       nullDecimal(total),
		Currency:          currency,
		PaymentMethod:     payment,
		Category:          req.Category,
		Notes:             req.Notes,
	}
	if err := db.Create(&entry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": entry.ID})
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func listJournalHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var entries []models.JournalEntry
	q := db.Model(&models.JournalEntry{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	if s := c.Query("supplier"); s != "" {
		q = q.Where("lower(supplier_name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if err := q.Order("entry_date desc").Limit(100).Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func getJournalHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	role, _ := c.Get("role")
	var entry models.JournalEntry
	if err := db.First(&entry, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if role != "administrator" && entry.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func updateJournalHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var entry models.JournalEntry
	if err := db.Where("user_id = ?", user.ID).First(&entry, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req struct {
		SupplierName *string `json:"supplier_name"`
		Category     *string `json:"category"`
		Notes        *string `json:"notes"`
		Reconciled   *bool   `json:"reconciled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SupplierName != nil {
		entry.SupplierName = *req.SupplierName
	}
	if req.Category != nil {
		entry.Category = *req.Category
	}
	if req.Notes != nil {
		entry.Notes = *req.Notes
	}
	if req.Reconciled != nil {
		entry.Reconciled = *req.Reconciled
	}
	if err := db.Save(&entry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// journalSummaryHandler returns total spend grouped by month.
func journalSummaryHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	type Result struct {
		Month string
		Total decimal.Decimal
	}
	var results []Result
	q := db.Model(&models.JournalEntry{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	rows, err := q.Select("to_char(entry_date, 'YYYY-MM') as month, coalesce(sum(total_amount), 0) as total").Group("month").Order("month desc").Rows()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	defer rows.Close()
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Month, &r.Total); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, results)
}

package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bartek5186/dopi2woo/internal/dopigo"
	"github.com/bartek5186/dopi2woo/internal/mapper"
)

const maxBody = 64 << 20

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

func (s *Server) triggerSync(c *gin.Context) {
	key := s.deps.Sync.Trigger(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true, "progress_key": key})
}

func (s *Server) syncProgress(c *gin.Context) {
	rec, ok, err := s.deps.Progress.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.log.Error().Err(err).Msg("progress read failed")
		fail(c, http.StatusInternalServerError, "Progress read failed")
		return
	}
	if !ok {
		fail(c, http.StatusNotFound, "Progress not found")
		return
	}
	c.JSON(http.StatusOK, rec)
}

type stockUpdateRequest struct {
	ProductID      *dopigo.FlexString `json:"product_id"`
	AvailableStock *dopigo.FlexInt    `json:"available_stock"`
}

func (s *Server) stockUpdate(c *gin.Context) {
	var req stockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == nil || req.AvailableStock == nil || *req.ProductID == "" {
		fail(c, http.StatusBadRequest, "Invalid data")
		return
	}
	err := s.deps.Stock.UpdateStock(c.Request.Context(), string(*req.ProductID), int(*req.AvailableStock))
	switch {
	case errors.Is(err, mapper.ErrNotFound):
		fail(c, http.StatusNotFound, "Product not found")
		return
	case err != nil:
		s.log.Error().Err(err).Str("product_id", string(*req.ProductID)).Msg("stock update failed")
		fail(c, http.StatusInternalServerError, "Stock update failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) importCategories(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		raw []byte
		err error
	)
	if useFeed, _ := strconv.ParseBool(c.Query("use_feed")); useFeed {
		feedURL := ""
		if s.deps.FeedURL != nil {
			feedURL = s.deps.FeedURL()
		}
		raw, err = s.deps.Catalog.FetchCategoryFeed(ctx, feedURL)
		if err != nil {
			fail(c, http.StatusBadGateway, err.Error())
			return
		}
	} else {
		raw, err = io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
		if err != nil || len(strings.TrimSpace(string(raw))) == 0 {
			fail(c, http.StatusBadRequest, "XML content is empty")
			return
		}
	}

	rep, err := s.deps.Categories.ImportFeed(ctx, raw)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": rep})
}

func (s *Server) pendingCategories(c *gin.Context) {
	ids, err := s.deps.Categories.ListPending(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": ids})
}

func (s *Server) history(c *gin.Context) {
	list, err := s.deps.Sync.History(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

func (s *Server) issues(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.deps.Issues.ListIssues(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": list})
}

type testConnectionRequest struct {
	APIKey string `json:"api_key"`
}

// testConnection: klucz z body albo z configu.
func (s *Server) testConnection(c *gin.Context) {
	var req testConnectionRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	token := strings.TrimSpace(req.APIKey)
	if token == "" {
		var err error
		if token, err = s.deps.Sync.Token(ctx); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := s.deps.Catalog.TestConnection(ctx, token); err != nil {
		fail(c, http.StatusBadGateway, "Connection failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Connection successful"})
}

type tokenRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (s *Server) generateToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil || req.Username == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Username and password are required")
		return
	}
	token, err := s.deps.Catalog.FetchToken(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

func (s *Server) importProducts(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	records, err := dopigo.DecodeRecords(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(records) == 0 {
		fail(c, http.StatusBadRequest, "No products in request")
		return
	}
	res := s.deps.Sync.ImportRecords(c.Request.Context(), records, "api")
	c.JSON(http.StatusOK, gin.H{"success": res.Errors == 0, "result": res})
}

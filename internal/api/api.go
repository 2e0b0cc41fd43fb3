package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-settings/pkg/engine"
	"github.com/celerix-dev/celerix-settings/pkg/settings"
)

type Handler struct {
	Storage *settings.Storage
}

// Register mounts the admin routes on r.
func Register(r gin.IRouter, h *Handler) {
	r.GET("/partitions", h.GetNamespaces)
	r.GET("/partitions/:partition", h.GetEntries)
	r.GET("/partitions/:partition/keys/:key", h.Get)
	r.PUT("/partitions/:partition/keys/:key", h.Set)
	r.DELETE("/partitions/:partition/keys/:key", h.Delete)
	r.DELETE("/partitions/:partition", h.Clear)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, settings.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrCannotOpenPartition):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func partition(c *gin.Context) (settings.PartitionID, bool) {
	p, err := settings.ParsePartitionID(c.Param("partition"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return settings.PartitionID{}, false
	}
	return p, true
}

func (h *Handler) GetNamespaces(c *gin.Context) {
	namespaces, err := h.Storage.Namespaces()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, namespaces)
}

func (h *Handler) GetEntries(c *gin.Context) {
	p, ok := partition(c)
	if !ok {
		return
	}
	entries, err := h.Storage.Entries(p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := partition(c)
	if !ok {
		return
	}
	val, err := h.Storage.Get(p, c.Param("key"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, val)
}

func (h *Handler) Set(c *gin.Context) {
	p, ok := partition(c)
	if !ok {
		return
	}

	var val engine.Value
	if err := c.ShouldBindJSON(&val); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Storage.Set(p, c.Param("key"), val); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Delete(c *gin.Context) {
	p, ok := partition(c)
	if !ok {
		return
	}
	if err := h.Storage.Remove(p, c.Param("key")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Clear(c *gin.Context) {
	p, ok := partition(c)
	if !ok {
		return
	}
	if err := h.Storage.RemoveAll(p); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

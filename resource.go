package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// resource is a generic CRUD handler set over one GORM model. Instead of a
// base type overridden per resource, each resource supplies three policy
// functions: how to build a new item from a request, who owns an item, and
// how list queries are filtered.
type resource[T any] struct {
	// build validates the create request and constructs the item for owner.
	build func(c *gin.Context, owner uint) (*T, error)
	// apply binds an update request onto an existing item.
	apply func(c *gin.Context, item *T) error
	// ownerOf is the ownership policy used by update and remove.
	ownerOf func(*T) uint
	// filter narrows list queries from request parameters.
	filter func(c *gin.Context, q *gorm.DB) *gorm.DB
}

func (r resource[T]) list(c *gin.Context) {
	q := db.Model(new(T))
	if r.filter != nil {
		q = r.filter(c, q)
	}
	var items []T
	if err := q.Order("id desc").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (r resource[T]) get(c *gin.Context) {
	var item T
	if err := db.First(&item, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (r resource[T]) create(c *gin.Context) {
	owner, ok := currentUserID(c)
	if !ok {
		abortWithError(c, ErrUnauthenticated)
		return
	}
	item, err := r.build(c, owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := db.Create(item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (r resource[T]) update(c *gin.Context) {
	owner, _ := currentUserID(c)
	var item T
	if err := db.First(&item, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if r.ownerOf(&item) != owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err := r.apply(c, &item); err != nil {
		abortWithError(c, err)
		return
	}
	if err := db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (r resource[T]) remove(c *gin.Context) {
	owner, _ := currentUserID(c)
	var item T
	if err := db.First(&item, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if r.ownerOf(&item) != owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err := db.Delete(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

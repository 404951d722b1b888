package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"platebook/models"
)

var postResource = resource[models.Post]{
	build: func(c *gin.Context, owner uint) (*models.Post, error) {
		var req struct {
			Title   string `json:"title" binding:"required"`
			Content string `json:"content"`
			Image   string `json:"image"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, ErrValidation
		}
		return &models.Post{Title: req.Title, Content: req.Content, Image: req.Image, OwnerID: owner}, nil
	},
	apply: func(c *gin.Context, p *models.Post) error {
		var req struct {
			Title   *string `json:"title"`
			Content *string `json:"content"`
			Image   *string `json:"image"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return ErrValidation
		}
		if req.Title != nil {
			p.Title = *req.Title
		}
		if req.Content != nil {
			p.Content = *req.Content
		}
		if req.Image != nil {
			p.Image = *req.Image
		}
		return nil
	},
	ownerOf: func(p *models.Post) uint { return p.OwnerID },
	filter: func(c *gin.Context, q *gorm.DB) *gorm.DB {
		if owner := c.Query("owner"); owner != "" {
			q = q.Where("owner_id = ?", owner)
		}
		return q
	},
}

var commentResource = resource[models.Comment]{
	build: func(c *gin.Context, owner uint) (*models.Comment, error) {
		var req struct {
			Content string `json:"content" binding:"required"`
			PostID  uint   `json:"postId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, ErrValidation
		}
		return &models.Comment{Content: req.Content, PostID: req.PostID, OwnerID: owner}, nil
	},
	apply: func(c *gin.Context, cm *models.Comment) error {
		var req struct {
			Content string `json:"content" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return ErrValidation
		}
		cm.Content = req.Content
		return nil
	},
	ownerOf: func(cm *models.Comment) uint { return cm.OwnerID },
	filter: func(c *gin.Context, q *gorm.DB) *gorm.DB {
		if postID := c.Query("postId"); postID != "" {
			q = q.Where("post_id = ?", postID)
		}
		return q
	},
}

// likePostHandler toggles the authenticated user's like on a post and
// returns the post with the current liker ids.
func likePostHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, ErrUnauthenticated)
		return
	}
	var post models.Post
	if err := db.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	res := db.Where("post_id = ? AND user_id = ?", post.ID, userID).Delete(&models.PostLike{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like failed"})
		return
	}
	if res.RowsAffected == 0 {
		// was not liked yet: the unique (post, user) index absorbs double taps
		if err := db.Create(&models.PostLike{PostID: post.ID, UserID: userID}).Error; err != nil && !isUniqueConstraintError(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "like failed"})
			return
		}
	}
	likes, err := postLikerIDs(post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        post.ID,
		"title":     post.Title,
		"content":   post.Content,
		"owner":     post.OwnerID,
		"image":     post.Image,
		"likes":     likes,
		"createdAt": post.CreatedAt,
		"updatedAt": post.UpdatedAt,
	})
}

func postLikerIDs(postID uint) ([]uint, error) {
	ids := []uint{}
	err := db.Model(&models.PostLike{}).Where("post_id = ?", postID).
		Order("id").Pluck("user_id", &ids).Error
	return ids, err
}

// analyzePostHandler proxies the post's recipe text to the language-model API.
func analyzePostHandler(c *gin.Context) {
	var post models.Post
	if err := db.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	analysis, err := recipeAnalyzer.AnalyzeRecipe(c.Request.Context(), post.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

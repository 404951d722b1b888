package main

import (
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"platebook/models"
	"platebook/pkg/thumbs"
	"platebook/pkg/token"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/auth/register", registerHandler)
	r.POST("/auth/login", loginHandler)
	r.POST("/auth/google", googleSigninHandler)
	r.POST("/auth/refresh", refreshHandler)
	r.POST("/auth/logout", logoutHandler)

	r.GET("/posts", postResource.list)
	r.GET("/posts/:id", postResource.get)
	r.GET("/posts/:id/analyze", analyzePostHandler)
	r.GET("/comments", commentResource.list)
	r.GET("/comments/:id", commentResource.get)
	r.GET("/users/:id", getUserHandler)

	r.Static("/public", uploadBaseDir())

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/auth/me", meHandler)
	authGroup.POST("/posts", postResource.create)
	authGroup.PUT("/posts/:id", postResource.update)
	authGroup.DELETE("/posts/:id", postResource.remove)
	authGroup.POST("/posts/:id/like", likePostHandler)
	authGroup.POST("/comments", commentResource.create)
	authGroup.PUT("/comments/:id", commentResource.update)
	authGroup.DELETE("/comments/:id", commentResource.remove)
	authGroup.PUT("/users/:id", updateUserHandler)
	authGroup.POST("/uploads", uploadFileHandler)
}

// jwtAuthMiddleware is the access guard: it verifies the bearer access token
// statelessly and puts the resolved user id on the context. The caller never
// learns which check failed.
func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortWithError(c, ErrUnauthenticated)
			return
		}
		userID, err := issuer.Verify(strings.TrimPrefix(authHeader, "Bearer "), token.Access)
		if err != nil {
			abortWithError(c, ErrUnauthenticated)
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

// currentUserID returns the id set by jwtAuthMiddleware.
func currentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func registerHandler(c *gin.Context) {
	var req struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		ProfileImage string `json:"profileImage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, ErrValidation)
		return
	}
	sess, err := RegisterUser(req.Email, req.Password, req.ProfileImage)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"email":        sess.User.Email,
		"id":           sess.User.ID,
		"profileImage": sess.User.ProfileImage,
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
	})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, ErrValidation)
		return
	}
	sess, err := LoginUser(req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
		"id":           sess.User.ID,
	})
}

func googleSigninHandler(c *gin.Context) {
	var req struct {
		Credential string `json:"credential" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, ErrValidation)
		return
	}
	if googleVerifier == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "google sign-in is not configured"})
		return
	}
	sess, err := GoogleSignIn(c.Request.Context(), req.Credential)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"email":        sess.User.Email,
		"id":           sess.User.ID,
		"profileImage": sess.User.ProfileImage,
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
	})
}

func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, ErrValidation)
		return
	}
	sess, err := RefreshSession(req.RefreshToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
		"id":           sess.User.ID,
	})
}

func logoutHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, ErrValidation)
		return
	}
	if err := LogoutSession(req.RefreshToken); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func meHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, ErrUnauthenticated)
		return
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		abortWithError(c, ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, user)
}

func getUserHandler(c *gin.Context) {
	var user models.User
	if err := db.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// updateUserHandler lets a user change their own profile image.
func updateUserHandler(c *gin.Context) {
	userID, _ := currentUserID(c)
	var user models.User
	if err := db.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if user.ID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var req struct {
		ProfileImage string `json:"profileImage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, ErrValidation)
		return
	}
	user.ProfileImage = req.ProfileImage
	if err := db.Save(&user).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// uploadFileHandler stores a multipart image under the uploads dir and
// returns its public path. A thumbnail is generated best-effort.
func uploadFileHandler(c *gin.Context) {
	folder := c.PostForm("folder")
	if folder == "" {
		folder = "images"
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	// unique-ify so concurrent uploads of the same name never clobber
	name := uuid.NewString()[:8] + "-" + filepath.Base(file.Filename)
	fullPath := filepath.Join(uploadBaseDir(), folder, name)
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	resp := gin.H{"path": "/public/" + folder + "/" + name}
	if thumbs.IsImage(name) {
		if dst, err := thumbs.Generate(fullPath, thumbs.MaxDim); err != nil {
			log.Printf("thumbnail for %s failed: %v", name, err)
		} else {
			resp["thumb"] = "/public/" + folder + "/.thumbs/" + filepath.Base(dst)
		}
	}
	c.JSON(http.StatusOK, resp)
}

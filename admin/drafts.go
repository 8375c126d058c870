package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sitequill/models"
)

func (a *AdminModule) listDrafts(c *gin.Context) {
	drafts, err := a.store.ListDrafts()
	if err != nil {
		respondError(c, err)
		return
	}
	if drafts == nil {
		drafts = []models.DraftBlog{}
	}
	c.JSON(http.StatusOK, drafts)
}

func (a *AdminModule) acceptDraft(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	completed, err := a.engine.Accept(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, completed)
}

func (a *AdminModule) rejectDraft(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := a.engine.Reject(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "draft rejected"})
}

func (a *AdminModule) acceptAll(c *gin.Context) {
	batch, err := a.engine.AcceptAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	a.report("Accept all", batch)
	respondBatch(c, batch)
}

func (a *AdminModule) rejectAll(c *gin.Context) {
	batch, err := a.engine.RejectAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondBatch(c, batch)
}

func (a *AdminModule) reconcile(c *gin.Context) {
	batch, err := a.engine.Reconcile(c.Request.Context(), a.reconcileAfter)
	if err != nil {
		respondError(c, err)
		return
	}
	a.report("Reconcile", batch)
	respondBatch(c, batch)
}

package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type safeIDProbe struct {
	ID string `binding:"safe_id"`
}

func TestSafeIDValidation(t *testing.T) {
	valid := []string{"mod-arena", "mod_arena.v2", "ABC123"}
	invalid := []string{"mod arena", "mod/arena", "mod;drop", "<script>"}

	for _, id := range valid {
		assert.NoError(t, binding.Validator.ValidateStruct(&safeIDProbe{ID: id}), id)
	}
	for _, id := range invalid {
		assert.Error(t, binding.Validator.ValidateStruct(&safeIDProbe{ID: id}), id)
	}
}

func TestSanitizeStruct(t *testing.T) {
	name := "  <b>Arena</b>  "
	req := RegisterModuleRequest{
		ID:     " mod-arena ",
		Name:   name,
		Secret: "super-secret-value-1",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "mod-arena", req.ID)
	assert.Equal(t, "&lt;b&gt;Arena&lt;/b&gt;", req.Name)
}

func TestSanitizeStruct_NonStructIsNoop(t *testing.T) {
	s := "plain"
	SanitizeStruct(&s)
	assert.Equal(t, "plain", s)
	SanitizeStruct(42)
}

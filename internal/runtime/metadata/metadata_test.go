package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

func TestCloneDoesNotAlias(t *testing.T) {
	original := Metadata{"a": "1", "b": "2"}
	clone := original.Clone()
	clone["a"] = "changed"

	assert.Equal(t, "1", original["a"])
	assert.Len(t, clone, len(original))
}

func TestCloneEmpty(t *testing.T) {
	var m Metadata
	cloned := m.Clone()
	assert.NotNil(t, cloned)
	assert.Empty(t, cloned)
}

func TestWithLeavesBaseUntouched(t *testing.T) {
	base := Command("BindActor", "system", "01J")
	enriched := base.With(KeyActor, "someone")

	assert.Equal(t, "system", base.Actor())
	assert.Equal(t, "someone", enriched.Actor())
	assert.Equal(t, "BindActor", enriched.Operation())
	assert.Equal(t, "01J", enriched.CommandID())
}

func TestToAndFromWatermill(t *testing.T) {
	md := Command("RemoveActor", "system", "id-1")
	wm := ToWatermill(md)
	assert.Equal(t, "RemoveActor", wm.Get(KeyOperation))

	wm.Set(KeyOperation, "mutated")
	assert.Equal(t, "RemoveActor", md.Operation())

	back := FromWatermill(message.Metadata{KeyActor: "system"})
	assert.Equal(t, "system", back.Actor())
	assert.Empty(t, back.Operation())

	assert.NotNil(t, ToWatermill(nil))
	assert.NotNil(t, FromWatermill(nil))
}

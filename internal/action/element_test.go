package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elem(uid string, x1, y1, x2, y2 int) Element {
	return Element{UID: uid, TopLeft: Pixel{x1, y1}, BottomRight: Pixel{x2, y2}, Kind: ElementClickable}
}

func TestFilterElements_Dedup(t *testing.T) {
	t.Parallel()

	// Centers: a=(50,50), b=(55,50) -> distance 5, c=(200,200).
	a := elem("a", 0, 0, 100, 100)
	b := elem("b", 10, 0, 100, 100)
	c := elem("c", 150, 150, 250, 250)

	kept := FilterElements([]Element{a, b, c}, nil, 30)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].UID)
	assert.Equal(t, "c", kept[1].UID)

	// With a threshold below the 5px separation both survive.
	kept = FilterElements([]Element{a, b, c}, nil, 4)
	assert.Len(t, kept, 3)
}

func TestFilterElements_UselessDroppedBeforeDedup(t *testing.T) {
	t.Parallel()

	a := elem("a", 0, 0, 100, 100)
	b := elem("b", 10, 0, 100, 100)

	// "a" is useless; "b" must survive even though it would normally be
	// suppressed as a near-duplicate of "a".
	useless := map[string]struct{}{"a": {}}
	kept := FilterElements([]Element{a, b}, useless, 30)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].UID)
}

func TestFilterElements_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, FilterElements(nil, nil, 30))
}

func TestFindAt(t *testing.T) {
	t.Parallel()

	a := elem("a", 0, 0, 100, 100)
	b := elem("b", 100, 0, 200, 100)

	got, ok := FindAt([]Element{a, b}, Pixel{150, 50})
	require.True(t, ok)
	assert.Equal(t, "b", got.UID)

	_, ok = FindAt([]Element{a, b}, Pixel{500, 500})
	assert.False(t, ok)
}

func TestDocKindFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   Action
		want DocKind
	}{
		{"tap", Action{Kind: KindTap}, DocTap},
		{"text", Action{Kind: KindText}, DocText},
		{"long press", Action{Kind: KindLongPress}, DocLongPress},
		{"swipe up", Action{Kind: KindSwipe, Direction: "up"}, DocVSwipe},
		{"swipe right", Action{Kind: KindSwipe, Direction: "right"}, DocHSwipe},
		{
			"point swipe vertical",
			Action{
				Kind:   KindSwipe,
				Target: Target{Point: &Point{500, 700}},
				End:    &Point{500, 200},
			},
			DocVSwipe,
		},
		{
			"point swipe horizontal",
			Action{
				Kind:   KindSwipe,
				Target: Target{Point: &Point{100, 500}},
				End:    &Point{900, 520},
			},
			DocHSwipe,
		},
		{"grid has no slot", Action{Kind: KindGrid}, DocKind("")},
		{"finish has no slot", Action{Kind: KindFinish}, DocKind("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DocKindFor(tc.in))
		})
	}
}

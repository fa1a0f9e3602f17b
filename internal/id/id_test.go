package id

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		b := New[Board]()
		got, err := Parse[Board](b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)

		u := New[User]()
		gotU, err := Parse[User](u.String())
		require.NoError(t, err)
		assert.Equal(t, u, gotU)
	}
}

func TestStringFormat(t *testing.T) {
	b := MustParse[Board]("board-01HBCCGK3MH83RJ4Y8AVECQ5W9")
	assert.Equal(t, "board-01HBCCGK3MH83RJ4Y8AVECQ5W9", b.String())
	assert.Equal(t, "board", b.Kind())
	assert.Len(t, b.ULID().String(), 26)
}

func TestParseErrors(t *testing.T) {
	t.Run("missing prefix", func(t *testing.T) {
		_, err := Parse[Board]("01HBCCGK3MH83RJ4Y8AVECQ5W9")
		require.ErrorIs(t, err, ErrMissingPrefix)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := Parse[Board]("user-01HBCCGK3MH83RJ4Y8AVECQ5W9")
		var km *KindMismatchError
		require.ErrorAs(t, err, &km)
		assert.Equal(t, "board", km.Expected)
		assert.Equal(t, "user", km.Actual)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("malformed value", func(t *testing.T) {
		for _, in := range []string{"board-", "board-xyz", "board-01HBCCGK3MH83RJ4Y8AVECQ5WU", "board-01HBCCGK3MH83RJ4Y8AVECQ5W9X"} {
			_, err := Parse[Board](in)
			var mv *MalformedValueError
			require.ErrorAs(t, err, &mv, in)
			require.ErrorIs(t, err, ErrInvalid)
		}
	})

	t.Run("splits on first separator", func(t *testing.T) {
		_, err := Parse[Board]("board-01HBCCGK3MH83RJ4Y8AVECQ5W9-extra")
		var mv *MalformedValueError
		require.ErrorAs(t, err, &mv)
		assert.Equal(t, "01HBCCGK3MH83RJ4Y8AVECQ5W9-extra", mv.Value)
	})
}

func TestEqualityAndMapKeys(t *testing.T) {
	a := MustParse[Column]("column-01HBCCGK3MAWDZKS74M1DEJQ54")
	b := MustParse[Column]("column-01HBCCGK3MAWDZKS74M1DEJQ54")
	c := New[Column]()

	m := map[ID[Column]]int{a: 1}
	m[b]++
	m[c] = 5
	assert.Equal(t, 2, m[a])
	assert.Len(t, m, 2)
	assert.True(t, a == b)
	assert.False(t, a == c)
}

func TestNewIsOrdered(t *testing.T) {
	prev := New[Card]()
	for i := 0; i < 50; i++ {
		next := New[Card]()
		assert.Equal(t, -1, prev.Compare(next))
		prev = next
	}
	assert.False(t, prev.IsZero())
	assert.True(t, ID[Card]{}.IsZero())
}

func TestKindOf(t *testing.T) {
	k, err := KindOf("card-01HBCCGK3MAWDZKS74M1DEJQ54")
	require.NoError(t, err)
	assert.Equal(t, "card", k)

	_, err = KindOf("lane-01HBCCGK3MAWDZKS74M1DEJQ54")
	var km *KindMismatchError
	require.ErrorAs(t, err, &km)

	_, err = KindOf("nothing")
	require.True(t, errors.Is(err, ErrMissingPrefix))
}

func TestTextAndSQL(t *testing.T) {
	type payload struct {
		Owner ID[User] `json:"owner"`
	}
	u := MustParse[User]("user-01HBCCGK3MG5HA7GJG25BGV6PJ")
	raw, err := json.Marshal(payload{Owner: u})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"user-01HBCCGK3MG5HA7GJG25BGV6PJ"}`, string(raw))

	var back payload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, u, back.Owner)

	err = json.Unmarshal([]byte(`{"owner":"board-01HBCCGK3MG5HA7GJG25BGV6PJ"}`), &back)
	require.ErrorIs(t, err, ErrInvalid)

	v, err := u.Value()
	require.NoError(t, err)
	var scanned ID[User]
	require.NoError(t, scanned.Scan(v))
	require.NoError(t, scanned.Scan([]byte(u.String())))
	assert.Equal(t, u, scanned)
	require.Error(t, scanned.Scan(nil))
	require.Error(t, scanned.Scan(42))
}

package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderInsertionOrder(t *testing.T) {
	jar := NewJar()
	jar.Set("legal_accepted2", "yes")
	jar.Set("_hofg_session_v2", "abc")
	jar.Set("user_token2", "tok")

	require.Equal(t, "legal_accepted2=yes; _hofg_session_v2=abc; user_token2=tok;", jar.Render())
}

func TestSetLastWriteWinsKeepsFirstPosition(t *testing.T) {
	jar := NewJar()
	jar.Set("a", "1")
	jar.Set("b", "2")
	jar.Set("a", "3")

	require.Equal(t, "a=3; b=2;", jar.Render())
	require.Equal(t, []string{"a", "b"}, jar.Names())
	require.Equal(t, 2, jar.Len())

	value, ok := jar.Get("a")
	require.True(t, ok)
	require.Equal(t, "3", value)
}

func TestRenderEmpty(t *testing.T) {
	require.Equal(t, "", NewJar().Render())
}

func TestFromMapIsDeterministic(t *testing.T) {
	jar := FromMap(map[string]string{"z": "1", "a": "2", "m": "3"})
	require.Equal(t, "a=2; m=3; z=1;", jar.Render())
}

func TestMerge(t *testing.T) {
	jar := NewJar()
	cookies := map[string]string{
		"other":       "x",
		"user_token2": "abc123",
	}

	require.True(t, jar.Merge(cookies, "user_token2"))
	require.False(t, jar.Merge(cookies, "missing"))
	require.Equal(t, "user_token2=abc123;", jar.Render())
}

func TestParseSetCookie(t *testing.T) {
	cookies := ParseSetCookie([]string{
		"_hofg_session_v2=abc%3D%3D--123; path=/; HttpOnly",
		"user_token2=first; path=/",
		"user_token2=second; path=/",
		"b64=a=b; path=/",
		"garbage",
		"=novalue",
	})
	require.Equal(t, map[string]string{
		"_hofg_session_v2": "abc%3D%3D--123",
		"user_token2":      "second",
		"b64":              "a=b",
	}, cookies)
}

func TestConcurrentSetAndRender(t *testing.T) {
	jar := NewJar()
	jar.Set("legal_accepted2", "yes")

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			jar.Set("_hofg_session_v2", "v")
		}()
		go func() {
			defer wg.Done()
			_ = jar.Render()
		}()
	}
	wg.Wait()

	require.Equal(t, "legal_accepted2=yes; _hofg_session_v2=v;", jar.Render())
}

package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifier_ClassifyPath(t *testing.T) {
	classifier := NewClassifier([]AllowlistRule{
		{Prefix: "/health", Class: RouteClassOps},
		{Prefix: "/debug/prometheus", Class: RouteClassOps},
		{Prefix: "/ws", Class: RouteClassWebsocket},
	})

	cases := []struct {
		path string
		want RouteClass
	}{
		{"/health", RouteClassOps},
		{"/debug/prometheus", RouteClassOps},
		{"/ws", RouteClassWebsocket},
		{"/api/v1/anything", RouteClassPublicAPI},
		{"/crm/api/records/contacts", RouteClassInternalAPI},
		{"/core/api", RouteClassInternalAPI},
		{"/healthz", RouteClassUI},
		{"/", RouteClassUI},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, tc.want, classifier.ClassifyPath(tc.path))
		})
	}
}

func TestHasPathPrefixOnBoundary(t *testing.T) {
	require.True(t, HasPathPrefixOnBoundary("/health", "/health"))
	require.True(t, HasPathPrefixOnBoundary("/health/live", "/health"))
	require.False(t, HasPathPrefixOnBoundary("/healthz", "/health"))
	require.True(t, HasPathPrefixOnBoundary("/anything", "/"))
	require.False(t, HasPathPrefixOnBoundary("/anything", ""))
}

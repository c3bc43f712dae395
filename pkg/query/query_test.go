// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/profilegate/pkg/query"
)

func TestStringSlice(t *testing.T) {
	assert.Nil(t, query.StringSlice(""))
	assert.Equal(t, []string{"auth", "ban"}, query.StringSlice(" auth, ,ban,"))
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/profilegate/pkg/slug"
)

func TestHandle(t *testing.T) {
	tests := map[string]string{
		"tai.bui":          "tai.bui",
		"Bùi Văn Tài":      "bui_van_tai",
		"  @Renée--Smith ": "renee_smith",
		"a..b__c":          "a.b_c",
		"!!!":              "",
	}

	for input, want := range tests {
		assert.Equal(t, want, slug.Handle(input), "input %q", input)
	}
}

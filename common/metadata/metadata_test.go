/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metadata

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo("bftclients")
	require.Contains(t, info, "bftclients:\n Version: latest\n Commit SHA: development build\n")
	require.Contains(t, info, "Go version: "+runtime.Version())
}

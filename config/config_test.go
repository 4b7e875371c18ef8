/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"fmt"
	"os"
	"testing"
)

const testconf = "testconfig"

func TestConfig(t *testing.T) {

	Config = nil

	os.WriteFile(testconf, []byte(`{
    "BufferPoolPages": "42"
}`), 0644)

	defer func() {
		if err := os.Remove(testconf); err != nil {
			fmt.Print("Could not remove test config file:", err.Error())
		}
	}()

	if err := LoadConfigFile(testconf); err != nil {
		t.Error(err)
		return
	}

	if res := Int(BufferPoolPages); res != 42 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Str(LocationDatastore); res != "db" {
		t.Error("Unexpected result:", res)
		return
	}

	LoadDefaultConfig()

	if res := Int(BufferPoolPages); res != 1024 {
		t.Error("Unexpected result:", res)
		return
	}

	Config[DefaultQueryTimeout] = "true"

	testPanic(t, func() { Int(DefaultQueryTimeout) })

	Config[DefaultQueryTimeout] = "x"

	testPanic(t, func() { Bool(DefaultQueryTimeout) })
}

func testPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Function did not panic")
		}
	}()
	f()
}

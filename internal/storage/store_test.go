/*
 * Copyright (c) 2026, Datalyr, Inc. (https://datalyr.com).
 *
 * Datalyr, Inc. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syserrors "github.com/datalyr/datalyr-go/internal/system/errors"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore_Roundtrip(t *testing.T) {
	store := NewMemoryStore()

	raw, err := store.GetItem("missing")
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, store.SetItem("k", []byte(`{"a":1}`)))
	raw, err = store.GetItem("k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	require.NoError(t, store.RemoveItem("k"))
	raw, err = store.GetItem("k")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFileStore_RoundtripAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, SetJSON(store, KeyAttribution, payload{Name: "meta", Count: 2}))

	// A second instance over the same directory sees the data: this is the
	// restart-survival contract.
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	var got payload
	found, err := GetJSON(reopened, KeyAttribution, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload{Name: "meta", Count: 2}, got)

	require.NoError(t, reopened.RemoveItem(KeyAttribution))
	found, err = GetJSON(reopened, KeyAttribution, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_RemoveMissingKeyIsNoop(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.RemoveItem("never-written"))
}

func TestGetJSON_AbsentKeyLeavesOutUntouched(t *testing.T) {
	store := NewMemoryStore()
	got := payload{Name: "sentinel"}
	found, err := GetJSON(store, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "sentinel", got.Name)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.SetItem("k", []byte("not-json")))

	var got payload
	_, err := GetJSON(store, "k", &got)
	assert.Error(t, err)
}

// failingStore errors on every operation, standing in for a broken disk.
type failingStore struct {
	err error
}

func (f *failingStore) GetItem(string) ([]byte, error) { return nil, f.err }
func (f *failingStore) SetItem(string, []byte) error   { return f.err }
func (f *failingStore) RemoveItem(string) error        { return f.err }

func TestGetJSON_ReadFailureCarriesStorageCode(t *testing.T) {
	store := &failingStore{err: errors.New("disk gone")}

	var got payload
	_, err := GetJSON(store, "k", &got)

	var serverErr *syserrors.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, syserrors.ErrWhileReadingStorage.Code, serverErr.Code)
}

func TestSetJSON_WriteFailureCarriesStorageCode(t *testing.T) {
	store := &failingStore{err: errors.New("disk full")}

	err := SetJSON(store, "k", payload{Name: "x"})

	var serverErr *syserrors.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, syserrors.ErrWhileWritingStorage.Code, serverErr.Code)
}

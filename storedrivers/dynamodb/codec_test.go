// Copyright 2024 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dynamodb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec/geohashcodec"
)

type place struct {
	ID   string  `dynamodbav:"id"`
	Name string  `dynamodbav:"name"`
	Lat  float64 `dynamodbav:"lat"`
	Lon  float64 `dynamodbav:"lon"`
}

// newPlace generates a fresh primary key the same way an entity-backed
// table would: a random identifier independent of the entity's content.
func newPlace(name string, lat, lon float64) place {
	return place{ID: uuid.New().String(), Name: name, Lat: lat, Lon: lon}
}

func TestStructCodec_ToRecordFromRecordRoundTrip(t *testing.T) {
	codec := StructCodec[place]{}
	p := newPlace("chicago", 41.8781, -87.6298)

	record, err := codec.ToRecord(p)
	require.NoError(t, err)
	assert.Equal(t, "chicago", record["name"])
	assert.Equal(t, p.ID, record["id"])

	decoded, err := codec.FromRecord(record)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestStructCodec_ToRecord_AssignsDistinctPrimaryKeys(t *testing.T) {
	codec := StructCodec[place]{}
	a, err := codec.ToRecord(newPlace("chicago", 41.8781, -87.6298))
	require.NoError(t, err)
	b, err := codec.ToRecord(newPlace("chicago", 41.8781, -87.6298))
	require.NoError(t, err)
	assert.NotEqual(t, a["id"], b["id"])
}

func TestStructCodec_EncodeLocation_NonNullableAlwaysWrites(t *testing.T) {
	codec := StructCodec[place]{}
	gh := geohashcodec.New()
	record := map[string]any{}

	err := codec.EncodeLocation(record, "cell_id", geoquery.Point{}, gh, 6, false, false)
	require.NoError(t, err)
	assert.NotEmpty(t, record["cell_id"])
}

func TestStructCodec_EncodeLocation_NullableAbsentOmitsAttribute(t *testing.T) {
	codec := StructCodec[place]{}
	gh := geohashcodec.New()
	record := map[string]any{"cell_id": "stale-value"}

	err := codec.EncodeLocation(record, "cell_id", geoquery.Point{}, gh, 6, true, false)
	require.NoError(t, err)
	_, present := record["cell_id"]
	assert.False(t, present)
}

func TestStructCodec_EncodeLocation_NullablePresentWrites(t *testing.T) {
	codec := StructCodec[place]{}
	gh := geohashcodec.New()
	p := geoquery.NewPoint(41.8781, -87.6298)
	record := map[string]any{}

	err := codec.EncodeLocation(record, "cell_id", p, gh, 6, true, true)
	require.NoError(t, err)

	id, err := gh.Encode(p, 6)
	require.NoError(t, err)
	assert.Equal(t, string(id), record["cell_id"])
}

package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory. Methods the store does not call panic
// through the nil embedded interface.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI
	items   map[string]map[string]*dynamodb.AttributeValue
	puts    int
	deletes int
	fail    error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]*dynamodb.AttributeValue)}
}

func key(av map[string]*dynamodb.AttributeValue) string {
	return aws.StringValue(av["Song"].S) + "/" + aws.StringValue(av["ID"].S)
}

func (f *fakeDynamo) QueryWithContext(_ aws.Context, in *dynamodb.QueryInput, _ ...request.Option) (*dynamodb.QueryOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	song := aws.StringValue(in.ExpressionAttributeValues[":song"].S)
	out := &dynamodb.QueryOutput{}
	for _, it := range f.items {
		if aws.StringValue(it["Song"].S) == song {
			out.Items = append(out.Items, it)
		}
	}
	return out, nil
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.puts++
	f.items[key(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItemWithContext(_ aws.Context, in *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.deletes++
	delete(f.items, key(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	store := NewDynamoStoreWithClient(db, "keyfall-scores")

	e := entry("ada", 120, 0)
	e.Accuracy = 0.5
	e.Track = "Melody"
	r, err := store.Insert(ctx, song, e)
	require.NoError(t, err)
	assert.Equal(t, 1, r)

	top, err := store.Top(ctx, song)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, e.ID, top[0].ID)
	assert.Equal(t, "ada", top[0].Player)
	assert.Equal(t, 120, top[0].Points)
	assert.Equal(t, "Melody", top[0].Track)
	assert.InDelta(t, 0.5, top[0].Accuracy, 1e-9)
	assert.True(t, e.Date.Equal(top[0].Date))

	other, err := store.Top(ctx, SongKey([]byte("other")))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDynamoStoreEvicts(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	store := NewDynamoStoreWithClient(db, "keyfall-scores")

	for i := 0; i < MaxEntries; i++ {
		_, err := store.Insert(ctx, song, entry(fmt.Sprint(i), 100+i, i))
		require.NoError(t, err)
	}
	assert.Zero(t, db.deletes)

	r, err := store.Insert(ctx, song, entry("low", 1, 50))
	require.NoError(t, err)
	assert.Zero(t, r)
	assert.Equal(t, MaxEntries, db.puts, "an entry that does not rank is not written")

	r, err = store.Insert(ctx, song, entry("top", 1000, 50))
	require.NoError(t, err)
	assert.Equal(t, 1, r)
	assert.Equal(t, 1, db.deletes)
	assert.Len(t, db.items, MaxEntries)

	top, err := store.Top(ctx, song)
	require.NoError(t, err)
	assert.Equal(t, "top", top[0].Player)
	assert.Equal(t, "1", top[MaxEntries-1].Player)
}

func TestDynamoStoreErrors(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	store := NewDynamoStoreWithClient(db, "keyfall-scores")

	_, err := store.Top(ctx, "bad")
	assert.ErrorIs(t, err, ErrBadSong)

	db.fail = errors.New("throttled")
	_, err = store.Insert(ctx, song, entry("ada", 1, 0))
	assert.ErrorIs(t, err, db.fail)
	assert.Zero(t, db.puts)
}

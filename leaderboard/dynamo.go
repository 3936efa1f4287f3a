package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/uuid"

	"go-keyfall/config"
	"go-keyfall/debug"
)

// DynamoStore keeps entries in a DynamoDB table with Song as the hash key
// and ID as the range key
type DynamoStore struct {
	db    dynamodbiface.DynamoDBAPI
	table string
}

// item is the table layout of an Entry
type item struct {
	Song       string    `dynamodbav:"Song"`
	ID         string    `dynamodbav:"ID"`
	Player     string    `dynamodbav:"Player"`
	Points     int       `dynamodbav:"Points"`
	Accuracy   float64   `dynamodbav:"Accuracy"`
	Great      int       `dynamodbav:"Great"`
	Good       int       `dynamodbav:"Good"`
	Ok         int       `dynamodbav:"Ok"`
	Missed     int       `dynamodbav:"Missed"`
	Incorrect  int       `dynamodbav:"Incorrect"`
	BestStreak int       `dynamodbav:"BestStreak"`
	Speed      float64   `dynamodbav:"Speed"`
	Track      string    `dynamodbav:"Track"`
	Date       time.Time `dynamodbav:"Date"`
}

// NewDynamoStore connects to the configured table. An empty region means
// the local endpoint of DynamoDB Local.
func NewDynamoStore(cfg config.StoreConfig) (*DynamoStore, error) {
	region := cfg.Region
	if region == "" {
		region = "localhost"
	}
	awsCfg := &aws.Config{Region: aws.String(region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("dynamodb session: %w", err)
	}
	return NewDynamoStoreWithClient(dynamodb.New(sess), cfg.Table), nil
}

func NewDynamoStoreWithClient(db dynamodbiface.DynamoDBAPI, table string) *DynamoStore {
	return &DynamoStore{db: db, table: table}
}

func (s *DynamoStore) Top(ctx context.Context, song string) ([]Entry, error) {
	if !ValidSong(song) {
		return nil, ErrBadSong
	}
	out, err := s.db.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("Song = :song"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":song": {S: aws.String(song)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}

	var items []item
	if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.table, err)
	}
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		id, err := uuid.Parse(it.ID)
		if err != nil {
			debug.Warn("scores", "skipping item with bad id %q", it.ID)
			continue
		}
		entries = append(entries, Entry{
			ID:         id,
			Player:     it.Player,
			Points:     it.Points,
			Accuracy:   it.Accuracy,
			Great:      it.Great,
			Good:       it.Good,
			Ok:         it.Ok,
			Missed:     it.Missed,
			Incorrect:  it.Incorrect,
			BestStreak: it.BestStreak,
			Speed:      it.Speed,
			Track:      it.Track,
			Date:       it.Date,
		})
	}
	sortEntries(entries)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries, nil
}

// Insert writes the entry if it ranks and deletes whatever it pushed out
func (s *DynamoStore) Insert(ctx context.Context, song string, e Entry) (int, error) {
	if err := prepare(&e); err != nil {
		return 0, err
	}
	entries, err := s.Top(ctx, song)
	if err != nil {
		return 0, err
	}
	_, r, evicted := rank(entries, e)
	if r == 0 {
		return 0, nil
	}

	av, err := dynamodbattribute.MarshalMap(toItem(song, e))
	if err != nil {
		return 0, err
	}
	_, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", s.table, err)
	}

	for _, old := range evicted {
		_, err := s.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]*dynamodb.AttributeValue{
				"Song": {S: aws.String(song)},
				"ID":   {S: aws.String(old.ID.String())},
			},
		})
		if err != nil {
			return r, fmt.Errorf("evict %s: %w", old.ID, err)
		}
	}
	debug.Log("scores", "%s: %s scored %d, rank %d (dynamodb)", song[:8], e.Player, e.Points, r)
	return r, nil
}

func toItem(song string, e Entry) item {
	return item{
		Song:       song,
		ID:         e.ID.String(),
		Player:     e.Player,
		Points:     e.Points,
		Accuracy:   e.Accuracy,
		Great:      e.Great,
		Good:       e.Good,
		Ok:         e.Ok,
		Missed:     e.Missed,
		Incorrect:  e.Incorrect,
		BestStreak: e.BestStreak,
		Speed:      e.Speed,
		Track:      e.Track,
		Date:       e.Date,
	}
}

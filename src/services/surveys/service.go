// Package surveys is the persistence layer for survey definitions: the
// reads consumed by the conversation manager plus authoring writes and
// completed-response storage.
package surveys

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SpitiusK/SurveyBot-sub016/src/database"
	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

const dbName = "SurveyBotDB"

// Service wraps the survey collections. It implements
// conversations.SurveyRepository.
type Service struct {
	surveys   *mongo.Collection
	questions *mongo.Collection
	rules     *mongo.Collection
	responses *mongo.Collection
	counters  *mongo.Collection
}

// NewService connects the collections. Call after database.ConnectMongoDB.
func NewService() *Service {
	return &Service{
		surveys:   database.GetCollection(dbName, "surveys"),
		questions: database.GetCollection(dbName, "questions"),
		rules:     database.GetCollection(dbName, "branching_rules"),
		responses: database.GetCollection(dbName, "responses"),
		counters:  database.GetCollection(dbName, "counters"),
	}
}

// nextSequence atomically increments and returns the id counter for scope.
func (s *Service) nextSequence(ctx context.Context, scope string) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": scope},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", scope, err)
	}
	return counter.Value, nil
}

// GetSurvey returns the survey or nil when it does not exist.
func (s *Service) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	var survey models.Survey
	err := s.surveys.FindOne(ctx, bson.M{"_id": id}).Decode(&survey)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &survey, nil
}

// GetQuestion returns the question with its options, or nil.
func (s *Service) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	var question models.Question
	err := s.questions.FindOne(ctx, bson.M{"_id": id}).Decode(&question)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &question, nil
}

// GetSurveyQuestionsOrdered returns the survey's questions sorted by order
// index (ties by id), the sequential-fallback order.
func (s *Service) GetSurveyQuestionsOrdered(ctx context.Context, surveyID int64) ([]models.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.questions.Find(ctx, bson.M{"surveyId": surveyID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var questions []models.Question
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// GetBranchingRules returns all branching rules of a survey, ordered by
// rule id: the stable priority the resolver relies on.
func (s *Service) GetBranchingRules(ctx context.Context, surveyID int64) ([]models.BranchingRule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.rules.Find(ctx, bson.M{"surveyId": surveyID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []models.BranchingRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ListSurveys returns a page of surveys.
func (s *Service) ListSurveys(ctx context.Context, params models.PaginationParams) (*models.PaginatedResponse, error) {
	total, err := s.surveys.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	sort := bson.D{}
	for k, v := range params.GetSortOrder() {
		sort = append(sort, bson.E{Key: k, Value: v})
	}
	opts := options.Find().
		SetSkip(params.GetSkip()).
		SetLimit(int64(params.Limit)).
		SetSort(sort)

	cursor, err := s.surveys.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var surveys []models.Survey
	if err := cursor.All(ctx, &surveys); err != nil {
		return nil, err
	}
	return models.NewPaginatedResponse(surveys, total, params), nil
}

// SaveResponse persists the answers captured in a finished conversation.
func (s *Service) SaveResponse(ctx context.Context, state *models.ConversationState) (*models.SurveyResponse, error) {
	response := &models.SurveyResponse{
		ID:            state.ResponseID,
		SurveyID:      state.SurveyID,
		SurveyVersion: state.SurveyVersion,
		UserID:        state.UserID,
		SessionID:     state.SessionID,
		Completed:     state.State == models.StateResponseComplete,
		SkippedIDs:    state.Skipped,
		CreatedAt:     time.Now(),
	}
	// Answers are stored in visited order so exports read naturally.
	for _, id := range state.Visited {
		if answer, ok := state.Answered[id]; ok {
			response.Answers = append(response.Answers, models.RecordedAnswer{
				QuestionID: id,
				Answer:     answer,
			})
		}
	}

	if _, err := s.responses.InsertOne(ctx, response); err != nil {
		return nil, fmt.Errorf("save survey response: %w", err)
	}
	return response, nil
}

package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
)

// seedQuiz creates a published assessment with two questions worth 1 and 3
// points. The first option of each question is the correct one.
func seedQuiz(t *testing.T, db *gorm.DB, published bool) models.Assessment {
	t.Helper()

	assessment := models.Assessment{
		CreatedBy:   1,
		Title:       "Phishing basics",
		IsPublished: published,
	}
	if err := db.Create(&assessment).Error; err != nil {
		t.Fatalf("failed to seed assessment: %v", err)
	}

	for qi, points := range []int{1, 3} {
		q := models.Question{
			AssessmentID: assessment.ID,
			Text:         fmt.Sprintf("Question %d", qi+1),
			Order:        qi + 1,
			Points:       points,
		}
		if err := db.Create(&q).Error; err != nil {
			t.Fatalf("failed to seed question: %v", err)
		}
		for oi := 0; oi < 3; oi++ {
			o := models.AnswerOption{
				QuestionID: q.ID,
				Text:       fmt.Sprintf("Option %d", oi+1),
				IsCorrect:  oi == 0,
				Order:      oi + 1,
			}
			if err := db.Create(&o).Error; err != nil {
				t.Fatalf("failed to seed option: %v", err)
			}
		}
	}
	return assessment
}

func seedLearner(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		PasswordHash: "x",
		Role:         models.RoleUser,
		APIKey:       username + "-key",
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func quizApp(db *gorm.DB, user *models.User) *fiber.App {
	atc := NewAttemptController(db, testLogger())
	app := newAuthedApp(user)
	app.Get("/quizzes", atc.ListAssessments)
	app.Get("/quizzes/:id", atc.GetAssessment)
	app.Post("/quizzes/:id/start", atc.StartAttempt)
	app.Post("/quizzes/:id/answer", atc.SubmitAnswer)
	app.Post("/quizzes/:id/complete", atc.CompleteAttempt)
	app.Get("/quizzes/:id/result", atc.GetResult)
	return app
}

func answer(t *testing.T, app *fiber.App, assessmentID, questionID, optionID uint) int {
	t.Helper()
	body, _ := json.Marshal(map[string]uint{
		"question_id":        questionID,
		"selected_option_id": optionID,
	})
	req := httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/answer", assessmentID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("answer request failed: %v", err)
	}
	return resp.StatusCode
}

func loadQuestions(t *testing.T, db *gorm.DB, assessmentID uint) []models.Question {
	t.Helper()
	var questions []models.Question
	if err := db.Where("assessment_id = ?", assessmentID).
		Order("\"order\" ASC").Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("\"order\" ASC")
	}).Find(&questions).Error; err != nil {
		t.Fatalf("failed to load questions: %v", err)
	}
	return questions
}

func TestAttemptScoring(t *testing.T) {
	db := newTestDB(t)
	quiz := seedQuiz(t, db, true)
	learner := seedLearner(t, db, "ada")
	app := quizApp(db, learner)
	questions := loadQuestions(t, db, quiz.ID)

	resp, err := app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("start status = %d, want 201", resp.StatusCode)
	}

	// Correct on the 1-point question, wrong on the 3-point question
	if code := answer(t, app, quiz.ID, questions[0].ID, questions[0].Options[0].ID); code != fiber.StatusOK {
		t.Fatalf("answer 1 status = %d", code)
	}
	if code := answer(t, app, quiz.ID, questions[1].ID, questions[1].Options[1].ID); code != fiber.StatusOK {
		t.Fatalf("answer 2 status = %d", code)
	}

	resp, err = app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/complete", quiz.ID), nil))
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("complete status = %d, want 200", resp.StatusCode)
	}

	var result struct {
		Score       int     `json:"score"`
		TotalPoints int     `json:"total_points"`
		Percentage  float64 `json:"percentage"`
		Passed      bool    `json:"passed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if result.Score != 1 || result.TotalPoints != 4 {
		t.Errorf("score = %d/%d, want 1/4", result.Score, result.TotalPoints)
	}
	if result.Percentage != 25 {
		t.Errorf("percentage = %v, want 25", result.Percentage)
	}
	if result.Passed {
		t.Error("a 25 percent score must not pass the 70 percent threshold")
	}
}

func TestAttemptDoubleCompleteRejected(t *testing.T) {
	db := newTestDB(t)
	quiz := seedQuiz(t, db, true)
	learner := seedLearner(t, db, "ada")
	app := quizApp(db, learner)
	questions := loadQuestions(t, db, quiz.ID)

	app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
	answer(t, app, quiz.ID, questions[0].ID, questions[0].Options[0].ID)

	complete := func() int {
		resp, err := app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/complete", quiz.ID), nil))
		if err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		return resp.StatusCode
	}
	if code := complete(); code != fiber.StatusOK {
		t.Fatalf("first complete status = %d", code)
	}
	if code := complete(); code != fiber.StatusBadRequest {
		t.Errorf("second complete status = %d, want 400", code)
	}

	// Answering after completion is rejected, the frozen score stays
	if code := answer(t, app, quiz.ID, questions[1].ID, questions[1].Options[0].ID); code != fiber.StatusBadRequest {
		t.Errorf("answer after completion status = %d, want 400", code)
	}

	var attempt models.Attempt
	db.Where("user_id = ? AND assessment_id = ?", learner.ID, quiz.ID).First(&attempt)
	if attempt.Score != 1 {
		t.Errorf("frozen score changed: %d", attempt.Score)
	}
}

func TestStartAttemptEdgeCases(t *testing.T) {
	db := newTestDB(t)
	learner := seedLearner(t, db, "ada")

	t.Run("unpublished is invisible", func(t *testing.T) {
		quiz := seedQuiz(t, db, false)
		app := quizApp(db, learner)
		resp, _ := app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
		if resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("deadline passed", func(t *testing.T) {
		quiz := seedQuiz(t, db, true)
		past := time.Now().Add(-time.Hour)
		db.Model(&quiz).Update("deadline", past)

		app := quizApp(db, learner)
		resp, _ := app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("restart returns existing attempt", func(t *testing.T) {
		quiz := seedQuiz(t, db, true)
		app := quizApp(db, learner)

		resp, _ := app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("first start status = %d", resp.StatusCode)
		}
		resp, _ = app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("restart status = %d, want 200", resp.StatusCode)
		}

		var count int64
		db.Model(&models.Attempt{}).Where("user_id = ? AND assessment_id = ?", learner.ID, quiz.ID).Count(&count)
		if count != 1 {
			t.Errorf("attempt rows = %d, want 1", count)
		}
	})
}

func TestSubmitAnswerValidatesOwnership(t *testing.T) {
	db := newTestDB(t)
	quizA := seedQuiz(t, db, true)
	quizB := seedQuiz(t, db, true)
	learner := seedLearner(t, db, "ada")
	app := quizApp(db, learner)

	questionsA := loadQuestions(t, db, quizA.ID)
	questionsB := loadQuestions(t, db, quizB.ID)

	app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quizA.ID), nil))

	// Question from another assessment
	if code := answer(t, app, quizA.ID, questionsB[0].ID, questionsB[0].Options[0].ID); code != fiber.StatusBadRequest {
		t.Errorf("foreign question accepted: status = %d", code)
	}
	// Option from another question
	if code := answer(t, app, quizA.ID, questionsA[0].ID, questionsA[1].Options[0].ID); code != fiber.StatusBadRequest {
		t.Errorf("foreign option accepted: status = %d", code)
	}
}

func TestSubmitAnswerUpserts(t *testing.T) {
	db := newTestDB(t)
	quiz := seedQuiz(t, db, true)
	learner := seedLearner(t, db, "ada")
	app := quizApp(db, learner)
	questions := loadQuestions(t, db, quiz.ID)

	app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))

	// Wrong first, corrected before completion
	answer(t, app, quiz.ID, questions[0].ID, questions[0].Options[2].ID)
	answer(t, app, quiz.ID, questions[0].ID, questions[0].Options[0].ID)

	var count int64
	db.Model(&models.Response{}).Count(&count)
	if count != 1 {
		t.Fatalf("response rows = %d, want 1 after upsert", count)
	}

	var response models.Response
	db.First(&response)
	if !response.IsCorrect || response.PointsEarned != 1 {
		t.Errorf("response not updated: %+v", response)
	}
}

func TestGetResultRevealsCorrectAnswerOnlyWhenWrong(t *testing.T) {
	db := newTestDB(t)
	quiz := seedQuiz(t, db, true)
	learner := seedLearner(t, db, "ada")
	app := quizApp(db, learner)
	questions := loadQuestions(t, db, quiz.ID)

	app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
	answer(t, app, quiz.ID, questions[0].ID, questions[0].Options[0].ID) // correct
	answer(t, app, quiz.ID, questions[1].ID, questions[1].Options[1].ID) // wrong
	app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/complete", quiz.ID), nil))

	resp, err := app.Test(httptest.NewRequest("GET", fmt.Sprintf("/quizzes/%d/result", quiz.ID), nil))
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("result status = %d", resp.StatusCode)
	}

	var body struct {
		Review []struct {
			QuestionID    uint   `json:"question_id"`
			IsCorrect     bool   `json:"is_correct"`
			CorrectAnswer string `json:"correct_answer"`
		} `json:"review"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(body.Review) != 2 {
		t.Fatalf("review rows = %d, want 2", len(body.Review))
	}
	if body.Review[0].CorrectAnswer != "" {
		t.Errorf("correct answer leaked for a correctly answered question")
	}
	if body.Review[1].CorrectAnswer != "Option 1" {
		t.Errorf("correct answer missing for a wrong answer: %+v", body.Review[1])
	}
}

func TestQuizViewHidesAnswerKey(t *testing.T) {
	db := newTestDB(t)
	quiz := seedQuiz(t, db, true)
	learner := seedLearner(t, db, "ada")
	app := quizApp(db, learner)

	resp, err := app.Test(httptest.NewRequest("GET", fmt.Sprintf("/quizzes/%d", quiz.ID), nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	flat, _ := json.Marshal(payload)
	if bytes.Contains(flat, []byte("is_correct")) {
		t.Errorf("answer key leaked into the learner view: %s", flat)
	}
}

func TestCreateAssessmentRequiresOneCorrectOption(t *testing.T) {
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	ac := NewAssessmentController(db, testLogger())
	app := newAuthedApp(admin)
	app.Post("/assessments", ac.CreateAssessment)

	payload := map[string]interface{}{
		"title": "broken quiz",
		"questions": []map[string]interface{}{
			{
				"text": "Which?",
				"options": []map[string]interface{}{
					{"text": "A", "is_correct": true},
					{"text": "B", "is_correct": true},
				},
			},
		},
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/assessments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPublishAssessmentIsOneWay(t *testing.T) {
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	quiz := seedQuiz(t, db, false)

	ac := NewAssessmentController(db, testLogger())
	app := newAuthedApp(admin)
	app.Post("/assessments/:id/publish", ac.PublishAssessment)

	publish := func() int {
		resp, err := app.Test(httptest.NewRequest("POST",
			fmt.Sprintf("/assessments/%d/publish", quiz.ID), nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp.StatusCode
	}
	if code := publish(); code != fiber.StatusOK {
		t.Fatalf("first publish status = %d", code)
	}
	if code := publish(); code != fiber.StatusBadRequest {
		t.Errorf("second publish status = %d, want 400", code)
	}
}

func TestAssessmentStats(t *testing.T) {
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	quiz := seedQuiz(t, db, true)

	// Three learners: one passes, one fails, one never starts
	pass := seedLearner(t, db, "pass")
	fail := seedLearner(t, db, "fail")
	seedLearner(t, db, "idle")

	questions := loadQuestions(t, db, quiz.ID)

	run := func(user *models.User, correctBoth bool) {
		app := quizApp(db, user)
		app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/start", quiz.ID), nil))
		answer(t, app, quiz.ID, questions[0].ID, questions[0].Options[0].ID)
		optionIdx := 1
		if correctBoth {
			optionIdx = 0
		}
		answer(t, app, quiz.ID, questions[1].ID, questions[1].Options[optionIdx].ID)
		app.Test(httptest.NewRequest("POST", fmt.Sprintf("/quizzes/%d/complete", quiz.ID), nil))
	}
	run(pass, true)  // 4/4 = 100%
	run(fail, false) // 1/4 = 25%

	ac := NewAssessmentController(db, testLogger())
	app := newAuthedApp(admin)
	app.Get("/assessments/:id/stats", ac.GetAssessmentStats)

	resp, err := app.Test(httptest.NewRequest("GET",
		fmt.Sprintf("/assessments/%d/stats", quiz.ID), nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var stats models.AssessmentStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("bad response body: %v", err)
	}

	if stats.TotalUsers != 3 || stats.CompletedUsers != 2 || stats.PendingUsers != 1 {
		t.Errorf("user counts = %+v, want 3 total, 2 completed, 1 pending", stats)
	}
	if stats.AverageScore != 62.5 {
		t.Errorf("AverageScore = %v, want 62.5", stats.AverageScore)
	}
	if stats.PassRate != 50 {
		t.Errorf("PassRate = %v, want 50", stats.PassRate)
	}
}

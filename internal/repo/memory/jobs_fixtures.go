package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/urwriter/marketplace/internal/domain/job"
)

// JobFixtures is the read-only job set served when the database cannot be
// reached. Writes are simulated: they return what the database would have
// returned but never change the set.
type JobFixtures struct {
	items []job.Job
	now   func() time.Time
}

func NewJobFixtures() *JobFixtures {
	return &JobFixtures{items: fixtureJobs(), now: func() time.Time { return time.Now().UTC() }}
}

func (r *JobFixtures) List(_ context.Context, f job.ListFilter) (job.Page, error) {
	page := job.Paginate(r.items, f)
	for i := range page.Items {
		page.Items[i] = cloneJob(page.Items[i])
	}
	return page, nil
}

func (r *JobFixtures) GetByID(_ context.Context, id string) (job.Job, error) {
	for _, j := range r.items {
		if j.ID == id {
			return cloneJob(j), nil
		}
	}
	return job.Job{}, job.ErrNotFound
}

// Create returns j with a synthetic id. Nothing is stored.
func (r *JobFixtures) Create(_ context.Context, j job.Job) (job.Job, error) {
	j.ID = "fixture-" + uuid.NewString()
	return j, nil
}

// Update requires the job to exist in the set and echoes j back.
func (r *JobFixtures) Update(ctx context.Context, j job.Job) (job.Job, error) {
	if _, err := r.GetByID(ctx, j.ID); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (r *JobFixtures) Delete(ctx context.Context, id string) error {
	_, err := r.GetByID(ctx, id)
	return err
}

func cloneJob(j job.Job) job.Job {
	out := j
	out.Skills = append([]string{}, j.Skills...)
	out.Attachments = append([]job.Attachment{}, j.Attachments...)
	out.Scope.Deliverables = append([]string(nil), j.Scope.Deliverables...)
	out.Scope.Requirements = append([]string(nil), j.Scope.Requirements...)
	if j.BudgetMin != nil {
		v := *j.BudgetMin
		out.BudgetMin = &v
	}
	if j.BudgetMax != nil {
		v := *j.BudgetMax
		out.BudgetMax = &v
	}
	return out
}

func money(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixtureJobs() []job.Job {
	mk := func(id, clientID, email, title, desc string, skills []string, bt job.BudgetType, min, max float64, proposals int, created string, scope job.Scope) job.Job {
		at := day(created)
		return job.Job{
			ID:            id,
			ClientID:      clientID,
			Title:         title,
			Description:   desc,
			Scope:         scope,
			Skills:        skills,
			BudgetType:    bt,
			BudgetMin:     money(min),
			BudgetMax:     money(max),
			Visibility:    job.VisibilityPublic,
			Status:        job.StatusPublished,
			Attachments:   []job.Attachment{},
			Client:        job.ClientRef{ID: clientID, Email: email},
			ProposalCount: proposals,
			CreatedAt:     at,
			UpdatedAt:     at,
		}
	}

	return []job.Job{
		mk("1", "client1", "tech.company@example.com",
			"Technical Blog Article Series",
			"Looking for a skilled technical writer to create a series of 5 blog articles about modern web development practices. Topics include React best practices, Node.js performance optimization, and database design patterns.",
			[]string{"Technical Writing", "Web Development", "React", "Node.js"},
			job.BudgetFixed, 1500, 2500, 8, "2025-08-10",
			job.Scope{Deliverables: []string{"5 blog articles"}, Length: "1500-2000 words each", Timeline: "4 weeks"}),
		mk("2", "client2", "startup@example.com",
			"Product Documentation Overhaul",
			"We need to completely rewrite our product documentation for a B2B SaaS platform. This includes user guides, API documentation, and troubleshooting guides. Experience with technical documentation and API docs is essential.",
			[]string{"Technical Writing", "API Documentation", "SaaS", "User Experience"},
			job.BudgetFixed, 3000, 5000, 12, "2025-08-09",
			job.Scope{Deliverables: []string{"User guides", "API reference", "Troubleshooting guides"}, Timeline: "8 weeks"}),
		mk("3", "client3", "marketing@productco.com",
			"Marketing Copy for Product Launch",
			"Creating compelling marketing copy for our new productivity app launch. Need website copy, email sequences, social media content, and press release. Must understand tech audience and conversion optimization.",
			[]string{"Copywriting", "Marketing", "Product Launch", "Email Marketing"},
			job.BudgetHourly, 50, 75, 15, "2025-08-08",
			job.Scope{Deliverables: []string{"Website copy", "Email sequence", "Press release"}, CTA: "Sign up for the beta"}),
		mk("4", "client1", "tech.company@example.com",
			"Professional Blog Post Writing",
			"Need a professional writer for weekly blog posts about technology trends.",
			[]string{"Blog Writing", "SEO", "Technology"},
			job.BudgetFixed, 150, 300, 3, "2025-08-07",
			job.Scope{Deliverables: []string{"4 blog posts"}, Length: "1000-1500 words", Timeline: "1 month"}),
		mk("5", "client2", "startup@example.com",
			"Technical Documentation Writer",
			"Looking for an experienced technical writer to document our REST API and developer onboarding flow.",
			[]string{"Technical Writing", "API Documentation"},
			job.BudgetHourly, 40, 60, 5, "2025-08-06",
			job.Scope{Deliverables: []string{"API reference", "Quickstart guide"}, Timeline: "3 weeks"}),
	}
}

package types

import (
	"strings"
	"time"
)

// Category classifies a career post by field of work.
type Category string

const (
	CategorySoftwareEngineering Category = "software-engineering"
	CategoryDataScience         Category = "data-science"
	CategoryProductManagement   Category = "product-management"
	CategoryDesign              Category = "design"
	CategoryMarketing           Category = "marketing"
	CategoryFinance             Category = "finance"
	CategoryConsulting          Category = "consulting"
	CategoryResearch            Category = "research"
	CategoryEntrepreneurship    Category = "entrepreneurship"
	CategoryOther               Category = "other"
)

var categoryLabels = map[Category]string{
	CategorySoftwareEngineering: "Software Engineering",
	CategoryDataScience:         "Data Science",
	CategoryProductManagement:   "Product Management",
	CategoryDesign:              "Design",
	CategoryMarketing:           "Marketing",
	CategoryFinance:             "Finance",
	CategoryConsulting:          "Consulting",
	CategoryResearch:            "Research",
	CategoryEntrepreneurship:    "Entrepreneurship",
	CategoryOther:               "Other",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Display returns the human-readable label of the category.
func (c Category) Display() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Post represents a career-journey entry shared by an alumnus.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// UserID is the author of the post. Legacy posts have no owner.
	UserID *int `json:"user" db:"user_id"`

	// Name is the display name shown on the post.
	Name string `json:"name" db:"name"`

	// Email is an optional contact address.
	Email *string `json:"email" db:"email"`

	// Role is the job title the journey describes.
	Role string `json:"role" db:"role"`

	// Category is the field of work.
	Category Category `json:"category" db:"category"`

	// Company is the employer, if shared.
	Company *string `json:"company" db:"company"`

	// Experience is the free-text journey narrative.
	Experience string `json:"experience" db:"experience"`

	// Skills is a comma-separated list of skills as entered by the author.
	Skills string `json:"skills" db:"skills"`

	// GraduationYear is the author's graduation year.
	GraduationYear *int `json:"graduation_year" db:"graduation_year"`

	// LinkedInURL is an optional external profile link.
	LinkedInURL *string `json:"linkedin_url" db:"linkedin_url"`

	// Likes is a monotonically increasing like counter.
	Likes int `json:"likes" db:"likes"`

	// IsApproved gates public visibility of the post.
	IsApproved bool `json:"-" db:"is_approved"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SkillsList splits the stored skills string into trimmed, non-empty entries.
func (p Post) SkillsList() []string {
	parts := strings.Split(p.Skills, ",")
	skills := make([]string, 0, len(parts))
	for _, part := range parts {
		if skill := strings.TrimSpace(part); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}

// PostView is the API representation of a post together with its comments.
type PostView struct {
	Post
	CategoryDisplay string        `json:"category_display"`
	SkillsList      []string      `json:"skills_list"`
	Comments        []CommentView `json:"comments"`
	CommentsCount   int           `json:"comments_count"`
}

// PostFilter narrows a post listing.
type PostFilter struct {
	// Category restricts results to one category when set.
	Category Category

	// IncludeHidden also returns posts that are not approved.
	IncludeHidden bool
}

// Like records a single user liking a post.
type Like struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	PostID    int       `json:"post_id" db:"post_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

package service

import (
	"strconv"
	"strings"

	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/pkg/config"
)

// Namer renders target course names from the configured templates.
type Namer struct {
	shortname string
	fullname  string
}

// NewNamer builds a Namer from naming config.
func NewNamer(cfg config.NamingConfig) *Namer {
	return &Namer{shortname: cfg.ShortnameTemplate, fullname: cfg.FullnameTemplate}
}

func (n *Namer) expand(template string, semester *models.Semester, course *models.Course) string {
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(semester.Year),
		"{name}", semester.Name,
		"{session}", semester.SessionKey,
		"{department}", course.Department,
		"{course_number}", course.CourseNumber,
		"{fullname}", course.FullName,
	)
	return strings.TrimSpace(r.Replace(template))
}

// Shortname renders the target course shortname.
func (n *Namer) Shortname(semester *models.Semester, course *models.Course) string {
	return n.expand(n.shortname, semester, course)
}

// Fullname renders the target course fullname.
func (n *Namer) Fullname(semester *models.Semester, course *models.Course) string {
	return n.expand(n.fullname, semester, course)
}

// GroupName renders the group name for a section within its target course.
func (n *Namer) GroupName(course *models.Course, section *models.Section) string {
	return course.Department + " " + course.CourseNumber + " " + section.SecNumber
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type CallToAction struct {
	Heading string `json:"heading"`
	Text    string `json:"text"`
	Button  string `json:"button"`
	Path    string `json:"path"`
}

type Landing struct {
	Title        string       `json:"title"`
	Subtitle     string       `json:"subtitle"`
	Hero         CallToAction `json:"hero"`
	Features     []Feature    `json:"features"`
	CallToAction CallToAction `json:"call_to_action"`
}

var landing = Landing{
	Title:    "Welcome to SkillFund",
	Subtitle: "The hybrid platform combining freelancing opportunities with crowdfunding innovation. Build your career, launch your projects, and fund the future.",
	Hero: CallToAction{
		Text:   "Join thousands of freelancers, clients, and innovators",
		Button: "Get Started Today",
		Path:   "/auth",
	},
	Features: []Feature{
		{Title: "Freelance Marketplace", Description: "Find talented freelancers or discover your next opportunity"},
		{Title: "Crowdfunding Platform", Description: "Launch campaigns or back innovative projects"},
		{Title: "Global Community", Description: "Connect with creators and professionals worldwide"},
		{Title: "Secure Payments", Description: "Safe and reliable payment processing"},
	},
	CallToAction: CallToAction{
		Heading: "Ready to Start Your Journey?",
		Text:    "Whether you're looking to hire, work, create, or invest - SkillFund has everything you need.",
		Button:  "Join SkillFund Now",
		Path:    "/auth",
	},
}

// GetLanding handles GET /api/landing
func GetLanding(c *gin.Context) {
	c.JSON(http.StatusOK, landing)
}

package models

import (
	"github.com/gosimple/slug"
)

// Task is a statically defined catalog entry. The catalog is code, not DB:
// task ids are slugs of the title so they stay stable across deploys, and
// XPReward is snapshotted onto each submission at insert time.
type Task struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	XPReward      int64    `json:"xp_reward"`
	OneTime       bool     `json:"one_time"` // at most one non-rejected submission per member
	Instructions  []string `json:"instructions"`
	ProofRequired string   `json:"proof_required"`
}

func task(title, description, category string, xp int64, oneTime bool, proofRequired string, instructions ...string) Task {
	return Task{
		ID:            slug.Make(title),
		Title:         title,
		Description:   description,
		Category:      category,
		XPReward:      xp,
		OneTime:       oneTime,
		Instructions:  instructions,
		ProofRequired: proofRequired,
	}
}

// TaskCatalog is the ordered list of community tasks members can complete.
var TaskCatalog = []Task{
	task("Follow on Twitter",
		"Follow our official Twitter account and retweet our pinned post",
		"Social Media", 50, true,
		"Screenshot of your Twitter profile showing you're following us and the retweet",
		"Visit our Twitter profile",
		"Click the Follow button",
		"Retweet our pinned post",
		"Take a screenshot showing you followed and retweeted",
		"Upload the screenshot as proof",
	),
	task("Write a Blog Post",
		"Write a detailed blog post about our project (minimum 500 words)",
		"Content Creation", 150, false,
		"URL of the published blog post",
		"Write an article about the Identity Registry DApp",
		"Minimum 500 words",
		"Publish on Medium, Dev.to, or your personal blog",
		"Include links to our project",
		"Submit the published article URL as proof",
	),
	task("Join Discord",
		"Join our Discord server and introduce yourself",
		"Community", 30, true,
		"Screenshot of your Discord introduction message",
		"Join our Discord server",
		"Go to #introductions channel",
		"Post your introduction (who you are, why you're interested)",
		"Take a screenshot of your introduction message",
		"Submit the screenshot",
	),
	task("Create a Video Tutorial",
		"Create a video explaining how to use our DApp",
		"Content Creation", 300, false,
		"YouTube or Loom video URL",
		"Record a video tutorial (3-10 minutes)",
		"Show how to connect wallet, earn XP, and mint NFT",
		"Upload to YouTube or Loom",
		"Submit the video URL",
	),
	task("Report a Bug",
		"Find and report a bug in our application",
		"Development", 100, false,
		"Detailed bug report with screenshots and steps to reproduce",
		"Test the application thoroughly",
		"If you find a bug, document it clearly",
		"Include steps to reproduce",
		"Take screenshots if applicable",
		"Submit a detailed bug report",
	),
	task("Refer 3 Friends",
		"Invite 3 friends to join and connect their wallets",
		"Community Growth", 200, true,
		"List of 3 wallet addresses of your referrals",
		"Share your referral link with friends",
		"At least 3 friends must connect their wallets",
		"Provide their wallet addresses as proof",
		"They must confirm they joined through your referral",
	),
	task("Complete Learning Module",
		"Complete our Web3 learning module and pass the quiz",
		"Education", 120, true,
		"Screenshot of quiz completion with score",
		"Access the learning module (link in Discord)",
		"Complete all lessons",
		"Pass the final quiz with 80% or higher",
		"Screenshot your completion certificate",
	),
	task("Design a Custom NFT",
		"Design a new tier badge for our NFT collection",
		"Design", 250, false,
		"URL to your uploaded design",
		"Create an original NFT badge design",
		"Use 500x500px dimensions",
		"Make it fit our Bronze/Silver/Gold theme",
		"Upload to Imgur or similar",
		"Submit the image URL",
	),
}

// FindTask looks up a catalog entry by id (title slug).
func FindTask(id string) (Task, bool) {
	for _, t := range TaskCatalog {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

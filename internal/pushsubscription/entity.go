package pushsubscription

import "time"

type Subscription struct {
	ID        string    `yaml:"id" json:"id"`
	User      string    `yaml:"user,omitempty" json:"user,omitempty"`
	Endpoint  string    `yaml:"endpoint" json:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key" json:"p256dh_key"`
	AuthKey   string    `yaml:"auth_key" json:"auth_key"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

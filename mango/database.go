// Copyright 2024 Mango Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mango

import "github.com/mangodb/mango/internal/util/lazyerrors"

// Database represents a database handle on the client's connection.
type Database struct {
	client *Client
	name   string
}

// Name returns the database name.
func (db *Database) Name() string {
	return db.name
}

// Collection creates a collection handle and registers it with the client.
func (db *Database) Collection(name string) (*Collection, error) {
	c := NewCollection(name)

	if err := c.Register(db); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return c, nil
}

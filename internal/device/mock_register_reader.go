// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"github.com/stretchr/testify/mock"
)

// MockRegisterReader is a RegisterReader backed by testify mock expectations
type MockRegisterReader struct {
	mock.Mock
}

var _ RegisterReader = (*MockRegisterReader)(nil)

func (m *MockRegisterReader) Read(cpu int, address uint32) (uint64, error) {
	args := m.Called(cpu, address)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRegisterReader) Close() error {
	args := m.Called()
	return args.Error(0)
}

// OnRead expects one read of address on cpu returning value
func (m *MockRegisterReader) OnRead(cpu int, address uint32, value uint64) *mock.Call {
	return m.On("Read", cpu, address).Return(value, nil).Once()
}

// OnReadError expects one read of address on cpu failing with err
func (m *MockRegisterReader) OnReadError(cpu int, address uint32, err error) *mock.Call {
	return m.On("Read", cpu, address).Return(uint64(0), err).Once()
}

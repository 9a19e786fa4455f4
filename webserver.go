package intesismqtt

import (
	"net/http"
	"strconv"

	"golang.org/x/net/websocket"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func handleErrors(c *gin.Context) {
	c.Next()

	if len(c.Errors) > 0 {
		c.JSON(-1, c.Errors) // -1 == not override the current error code
	}
}

// apiConfigUpdate is the partial-update body for PUT /api/device/:id/config.
type apiConfigUpdate struct {
	HVACMode   *string  `json:"hvacMode"`
	TargetTemp *float64 `json:"targetTemp"`
	FanMode    *string  `json:"fanMode"`
	Preset     *string  `json:"preset"`
	SwingMode  *string  `json:"swingMode"`
	SwingHoriz *string  `json:"swingHorizontalMode"`
	Power      *bool    `json:"power"`
}

// Handler builds the REST and websocket surface.
func (b *Bridge) Handler() http.Handler {
	r := gin.Default()
	r.Use(handleErrors) // attach error handling middleware

	api := r.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"connected":    b.controller.IsConnected(),
			"deviceType":   b.controller.DeviceType(),
			"controllerId": b.controller.ControllerID(),
			"devices":      len(b.devices),
		})
	})

	api.GET("/devices", func(c *gin.Context) {
		states := []ClimateState{}
		for _, dev := range b.climateDevices() {
			states = append(states, dev.State())
		}
		c.JSON(200, states)
	})

	api.GET("/device/:id", func(c *gin.Context) {
		dev, ok := b.Device(c.Param("id"))
		if !ok {
			c.JSON(404, gin.H{"error": "unknown device"})
			return
		}
		c.JSON(200, dev.State())
	})

	api.GET("/device/:id/capabilities", func(c *gin.Context) {
		dev, ok := b.Device(c.Param("id"))
		if !ok {
			c.JSON(404, gin.H{"error": "unknown device"})
			return
		}
		c.JSON(200, gin.H{
			"features":             dev.Features(),
			"hvacModes":            dev.HVACModes(),
			"fanModes":             dev.FanModes(),
			"swingModes":           dev.SwingModes(),
			"swingHorizontalModes": dev.SwingHorizontalModes(),
			"presetModes":          dev.PresetModes(),
		})
	})

	api.PUT("/device/:id/config", func(c *gin.Context) {
		var args apiConfigUpdate

		if c.Bind(&args) != nil {
			log.Printf("bind failed")
			return
		}

		id := c.Param("id")
		if _, ok := b.Device(id); !ok {
			c.JSON(404, gin.H{"error": "unknown device"})
			return
		}

		type write struct{ property, value string }
		var writes []write

		if args.Power != nil {
			v := "off"
			if *args.Power {
				v = "on"
			}
			writes = append(writes, write{"power", v})
		}
		if args.HVACMode != nil {
			writes = append(writes, write{"mode", *args.HVACMode})
		}
		if args.TargetTemp != nil {
			writes = append(writes, write{"target_temp", strconv.FormatFloat(*args.TargetTemp, 'f', -1, 64)})
		}
		if args.FanMode != nil {
			writes = append(writes, write{"fan_mode", *args.FanMode})
		}
		if args.Preset != nil {
			writes = append(writes, write{"preset_mode", *args.Preset})
		}
		if args.SwingMode != nil {
			writes = append(writes, write{"swing_mode", *args.SwingMode})
		}
		if args.SwingHoriz != nil {
			writes = append(writes, write{"swing_horizontal_mode", *args.SwingHoriz})
		}

		for _, w := range writes {
			if err := b.applyCommand(id, w.property, w.value); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
		}

		dev, _ := b.Device(id)
		c.JSON(200, dev.State())
	})

	api.GET("/ws", func(c *gin.Context) {
		h := websocket.Handler(b.attachListener)
		h.ServeHTTP(c.Writer, c.Request)
	})

	return r
}

// Serve runs the webserver on the given port; it blocks like the underlying
// listener.
func (b *Bridge) Serve(port int) error {
	return http.ListenAndServe(":"+strconv.Itoa(port), b.Handler())
}

func (b *Bridge) attachListener(ws *websocket.Conn) {
	listener := &EventListener{make(chan []byte, 32)}

	defer func() {
		b.dispatcher.deregister <- listener
		log.Printf("closing websocket")
		err := ws.Close()
		if err != nil {
			log.Println("error on ws close:", err.Error())
		}
	}()

	b.dispatcher.register <- listener

	// Replay the cache so a new listener starts from current state.
	for source, data := range b.cache.dump() {
		ws.Write(serializeEvent(source, data))
	}

	// wait for events
	for message := range listener.ch {
		_, err := ws.Write(message)
		if err != nil {
			log.Printf("error on websocket write: %s", err.Error())
			return
		}
	}
}
